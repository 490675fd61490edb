package compare

// Kind is the top-level classification of a comparison.
type Kind string

const (
	KindMatch        Kind = "Match"
	KindDiverge      Kind = "Diverge"
	KindInconclusive Kind = "Inconclusive"
)

// Reason qualifies Diverge and Inconclusive verdicts.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInfrastructure  Reason = "infrastructure"
	ReasonCrashMismatch   Reason = "crash-mismatch"
	ReasonBothTimedOut    Reason = "both-timed-out"
	ReasonTimeoutMismatch Reason = "timeout-mismatch"
	ReasonOutputMismatch  Reason = "output-mismatch"
)

// Verdict is the outcome of comparing one native run against one oracle run.
type Verdict struct {
	Kind   Kind   `json:"kind"`
	Reason Reason `json:"reason,omitempty"`
}

func (v Verdict) String() string {
	if v.Reason == ReasonNone {
		return string(v.Kind)
	}
	return string(v.Kind) + "{" + string(v.Reason) + "}"
}

// IsFailure reports whether the verdict should be filed.
func (v Verdict) IsFailure() bool {
	return v.Kind == KindDiverge
}
