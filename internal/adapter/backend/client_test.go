package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Config{
		BackendAPIURL:    srv.URL,
		BackendAPIKey:    "token",
		BackendTimeout:   2 * time.Second,
		RetryMaxAttempts: 3,
		RetryInitialWait: time.Millisecond,
		RetryMaxWait:     5 * time.Millisecond,
	})
}

func TestGetJob(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/j1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": "j1", "status": "queued", "jd_text": "hiring"},
		})
	}))
	job, err := c.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, domain.JobQueued, job.Status)
	assert.Equal(t, "hiring", job.JDText)
}

func TestAPIErrorOnFailureEnvelope(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no such job"})
	}))
	_, err := c.GetJob(context.Background(), "missing")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "/jobs/missing", apiErr.Endpoint)
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "upstream down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"id": "j1"}})
	}))
	job, err := c.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "bad payload"})
	}))
	err := c.UpdateJDStatus(context.Background(), "j1", domain.JobFailed)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubmitScoreAndListScores(t *testing.T) {
	var posted domain.ScoreRecord
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/updates/score":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case r.Method == http.MethodGet && r.URL.Path == "/updates/scores/j1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    []domain.ScoreRecord{{JobID: "j1", ResumeID: "r1", FinalScore: 0.42}},
			})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	rec := domain.ScoreRecord{JobID: "j1", ResumeID: "r1", FinalScore: 0.42, RankingTier: domain.TierBelowAverage}
	require.NoError(t, c.SubmitScore(context.Background(), rec))
	assert.Equal(t, "r1", posted.ResumeID)
	assert.InDelta(t, 0.42, posted.FinalScore, 1e-9)

	scores, err := c.ListScores(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "r1", scores[0].ResumeID)
}

func TestUpdateResumePartialPatch(t *testing.T) {
	var body map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	status := domain.StageSuccess
	require.NoError(t, c.UpdateResume(context.Background(), "r1", domain.ResumePatch{ExtractionStatus: &status}))
	assert.Equal(t, "success", body["extraction_status"])
	// nil fields must be omitted entirely
	_, hasParsing := body["parsing_status"]
	assert.False(t, hasParsing)
}
