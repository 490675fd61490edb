package contextkey

// key is a private type to avoid context key collisions across packages.
type key string

const (
	CampaignID key = "campaign_id"
	LaneID     key = "lane_id"
	RunID      key = "run_id"
	Seed       key = "seed"
	RequestID  key = "request_id"
)
