package statusapi

import (
	"net/http"
	"strconv"

	"swfdiff/internal/campaign"
	"swfdiff/internal/store"
	"swfdiff/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type handler struct {
	progress Progress
	failures Failures
}

// StatsResponse combines live lane progress with the store's totals.
type StatsResponse struct {
	Campaign campaign.Snapshot `json:"campaign"`
	Store    store.Counters    `json:"store"`
}

func (h *handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *handler) Stats(c *gin.Context) {
	var resp StatsResponse
	if h.progress != nil {
		resp.Campaign = h.progress.Snapshot()
	}
	if h.failures != nil {
		resp.Store = h.failures.Counters()
	}
	response.Success(c, resp)
}

func (h *handler) ListFailures(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok || page < 1 {
		response.BadRequest(c, "Invalid page")
		return
	}
	pageSize, ok := queryInt(c, "page_size", defaultPageSize)
	if !ok || pageSize < 1 || pageSize > maxPageSize {
		response.BadRequest(c, "Invalid page_size")
		return
	}

	records, total, err := h.failures.List(c.Request.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	if records == nil {
		records = []store.FailureRecord{}
	}
	response.SuccessWithPagination(c, records, total, page, pageSize)
}

func (h *handler) GetFailure(c *gin.Context) {
	rec, err := h.failures.Get(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rec)
}

// GetArtifact streams one stored file as-is.
func (h *handler) GetArtifact(c *gin.Context) {
	name := c.Param("name")
	data, err := h.failures.Artifact(c.Request.Context(), c.Param("fingerprint"), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if name == store.ArtifactSWF {
		contentType = "application/x-shockwave-flash"
	}
	c.Data(http.StatusOK, contentType, data)
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
