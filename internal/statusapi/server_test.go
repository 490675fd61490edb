package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"swfdiff/internal/campaign"
	"swfdiff/internal/compare"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProgress struct{ snap campaign.Snapshot }

func (p fixedProgress) Snapshot() campaign.Snapshot { return p.snap }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	index, err := store.NewFSIndex(root)
	require.NoError(t, err)
	artifacts, err := store.NewFSArtifacts(root)
	require.NoError(t, err)
	cmp, err := compare.New(compare.Config{})
	require.NoError(t, err)
	s, err := store.New(store.Config{}, index, artifacts, cmp, nil)
	require.NoError(t, err)
	return s
}

func fileCase(t *testing.T, s *store.Store, seed uint64, oracle string) store.FailureRecord {
	t.Helper()
	out, err := s.File(context.Background(), store.Case{
		Seed:    seed,
		SWF:     []byte{'F', 'W', 'S', 10},
		Native:  result.ExecutionResult{Status: result.StatusCompleted, Output: []byte("a\n")},
		Oracle:  result.ExecutionResult{Status: result.StatusCompleted, Output: []byte(oracle)},
		Verdict: compare.Verdict{Kind: compare.KindDiverge, Reason: compare.ReasonOutputMismatch},
	})
	require.NoError(t, err)
	return out.Record
}

type envelope struct {
	Code      int             `json:"code"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStatusAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	first := fileCase(t, s, 1, "b\n")
	fileCase(t, s, 2, "c\n")
	fileCase(t, s, 3, "b\n")

	reg := prometheus.NewRegistry()
	campaign.NewMetrics(reg)
	progress := fixedProgress{snap: campaign.Snapshot{CampaignID: "c1", Iterations: 42}}
	router := NewRouter(progress, s, reg)

	t.Run("health", func(t *testing.T) {
		rec, _ := get(t, router, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	})

	t.Run("stats", func(t *testing.T) {
		rec, env := get(t, router, "/api/v1/campaign/stats")
		require.Equal(t, http.StatusOK, rec.Code)
		var stats StatsResponse
		require.NoError(t, json.Unmarshal(env.Data, &stats))
		assert.Equal(t, "c1", stats.Campaign.CampaignID)
		assert.Equal(t, int64(42), stats.Campaign.Iterations)
		assert.Equal(t, store.Counters{NewFailures: 2, Duplicates: 1}, stats.Store)
		assert.NotEmpty(t, env.RequestID)
	})

	t.Run("list", func(t *testing.T) {
		rec, env := get(t, router, "/api/v1/failures?page=1&page_size=1")
		require.Equal(t, http.StatusOK, rec.Code)
		var page struct {
			Items      []store.FailureRecord `json:"items"`
			Total      int64                 `json:"total"`
			TotalPages int                   `json:"total_pages"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Len(t, page.Items, 1)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, 2, page.TotalPages)

		rec, _ = get(t, router, "/api/v1/failures?page=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec, _ = get(t, router, "/api/v1/failures?page_size=1000")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec, env := get(t, router, "/api/v1/failures/"+first.Fingerprint)
		require.Equal(t, http.StatusOK, rec.Code)
		var got store.FailureRecord
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, int64(2), got.Duplicates)

		rec, _ = get(t, router, "/api/v1/failures/"+strings.Repeat("0", 64))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = get(t, router, "/api/v1/failures/not-a-fingerprint")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("artifact", func(t *testing.T) {
		rec, _ := get(t, router, "/api/v1/failures/"+first.Fingerprint+"/artifacts/"+store.ArtifactSWF)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/x-shockwave-flash", rec.Header().Get("Content-Type"))
		assert.Equal(t, []byte{'F', 'W', 'S', 10}, rec.Body.Bytes())

		rec, _ = get(t, router, "/api/v1/failures/"+first.Fingerprint+"/artifacts/"+store.ArtifactDiff)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "+b")

		rec, _ = get(t, router, "/api/v1/failures/"+first.Fingerprint+"/artifacts/passwd")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec, _ := get(t, router, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "swfdiff_lanes_active")
	})
}

func TestMetricsNotMountedWithoutGatherer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(fixedProgress{}, newTestStore(t), nil)
	rec, _ := get(t, router, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
