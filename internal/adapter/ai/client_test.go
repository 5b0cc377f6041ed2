package ai

import (
	"encoding/json"
	"fmt"
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
	cfg := config.Config{
		OpenAIAPIKey:            "test-key",
		OpenAIBaseURL:           srv.URL,
		ChatModel:               "gpt-4o-mini",
		EmbeddingModel:          "text-embedding-3-small",
		RetryInitialWait:        time.Millisecond,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          time.Minute,
	}
	return &Client{
		cfg:     cfg,
		chatHC:  srv.Client(),
		embedHC: srv.Client(),
		breaker: NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerTimeout),
		cleaner: NewResponseCleaner(),
	}
}

func toolCallResponse(t *testing.T, name, args string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"tool_calls": []map[string]any{{
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
		}},
	})
	require.NoError(t, err)
	return b
}

func TestParseJDDecodesFunctionArguments(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 0.0, body["temperature"])
		assert.NotNil(t, body["tool_choice"])

		args := `{"role_title":"Backend Engineer","seniority":"senior",` +
			`"required_skills":["Golang","PostgreSQL"],` +
			`"weighted_keywords":{"golang":0.9},"min_experience_years":5}`
		_, _ = w.Write(toolCallResponse(t, "record_jd_analysis", args))
	}))

	jd, err := c.ParseJD(t.Context(), "We need a senior backend engineer.")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", jd.RoleTitle)
	assert.Equal(t, []string{"golang", "postgresql"}, jd.RequiredSkills)
	assert.Equal(t, 5.0, jd.MinExperienceYears)
}

func TestChatFunctionRepairsTruncatedArguments(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// cut off mid-object, as seen when the model hits its output limit
		args := `{"role_title":"Data Engineer","required_skills":["python","spark"`
		_, _ = w.Write(toolCallResponse(t, "record_jd_analysis", args))
	}))

	jd, err := c.ParseJD(t.Context(), "jd text")
	require.NoError(t, err)
	assert.Equal(t, "Data Engineer", jd.RoleTitle)
	assert.Equal(t, []string{"python", "spark"}, jd.RequiredSkills)
}

func TestChatFunctionUnrepairableIsParseFailure(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(toolCallResponse(t, "record_jd_analysis", `"role_title": }{]`))
	}))

	_, err := c.ParseJD(t.Context(), "jd text")
	require.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestChatFunctionRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(toolCallResponse(t, "record_jd_analysis", `{"role_title":"SRE","required_skills":[]}`))
	}))

	jd, err := c.ParseJD(t.Context(), "jd text")
	require.NoError(t, err)
	assert.Equal(t, "SRE", jd.RoleTitle)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatFunctionDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := c.ParseJD(t.Context(), "jd text")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseComplianceEmptyPromptSkipsAPI(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no API call expected for an empty prompt")
	}))

	block, err := c.ParseCompliance(t.Context(), "   ")
	require.NoError(t, err)
	assert.Empty(t, block.Structured)
}

func TestParseComplianceDecodesSpec(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		args := `{"structured":{"experience":{"type":"experience","specified":true,"min_years":5},` +
			`"location":{"type":"location","specified":false}}}`
		_, _ = w.Write(toolCallResponse(t, "record_compliance_requirements", args))
	}))

	block, err := c.ParseCompliance(t.Context(), "must have 5 years of experience")
	require.NoError(t, err)
	require.Contains(t, block.Structured, "experience")
	assert.True(t, block.Structured["experience"].Specified)
	assert.Equal(t, 5.0, block.Structured["experience"].MinYears)
	assert.Equal(t, []string{"experience"}, block.SpecifiedFields())
}

func TestEmbedBatchChunksRequests(t *testing.T) {
	var sizes []int
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sizes = append(sizes, len(body.Input))

		data := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{3, 4}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))

	texts := make([]string, 130)
	for i := range texts {
		texts[i] = fmt.Sprintf("sentence %d", i)
	}
	vecs, err := c.EmbedBatch(t.Context(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 130)
	assert.Equal(t, []int{128, 2}, sizes)

	// rows come back unit length
	assert.InDelta(t, 0.6, float64(vecs[0][0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vecs[0][1]), 1e-6)
}

func TestEmbedBatchUsesDiskCache(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := make([]map[string]any, len(body.Input))
		for i := range body.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{1, 0}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	cache, err := OpenEmbedCache(t.TempDir(), c.cfg.EmbeddingModel)
	require.NoError(t, err)
	c.cache = cache

	_, err = c.EmbedBatch(t.Context(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	// second call with one known and one new text embeds only the new one
	vecs, err := c.EmbedBatch(t.Context(), []string{"alpha", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, float32(1), vecs[0][0])
}

func TestRerankBatchFiltersDisallowedFields(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		args := `{"candidates":[{"candidate_id":"c1","re_rank_score":0.8,"meets_requirements":true,` +
			`"requirements_met":["experience","visa_status"],"requirements_missing":["education"]}]}`
		_, _ = w.Write(toolCallResponse(t, "record_ranked_candidates", args))
	}))

	out, err := c.RerankBatch(t.Context(), domain.RerankInput{
		Candidates:    []domain.CandidateSummary{{CandidateID: "c1", Name: "A", FinalScore: 0.7}},
		Requirements:  "5 years experience",
		AllowedFields: []string{"experience"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"experience"}, out[0].RequirementsMet)
	assert.Empty(t, out[0].RequirementsMissing)
	assert.Equal(t, 0.8, out[0].ReRankScore)
}

func TestRerankBatchDropsFieldsClaimedMetFromMissing(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		args := `{"candidates":[{"candidate_id":"c1","re_rank_score":0.7,"meets_requirements":false,` +
			`"requirements_met":["experience"],"requirements_missing":["experience","hard_skills"]}]}`
		_, _ = w.Write(toolCallResponse(t, "record_ranked_candidates", args))
	}))

	out, err := c.RerankBatch(t.Context(), domain.RerankInput{
		Candidates:    []domain.CandidateSummary{{CandidateID: "c1", Name: "A", FinalScore: 0.6}},
		Requirements:  "5 years experience, golang",
		AllowedFields: []string{"experience", "hard_skills"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"experience"}, out[0].RequirementsMet)
	assert.Equal(t, []string{"hard_skills"}, out[0].RequirementsMissing)
}

func TestRerankBatchFillsDroppedCandidates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		args := `{"candidates":[{"candidate_id":"c1","re_rank_score":0.9,"meets_requirements":true}]}`
		_, _ = w.Write(toolCallResponse(t, "record_ranked_candidates", args))
	}))

	out, err := c.RerankBatch(t.Context(), domain.RerankInput{
		Candidates: []domain.CandidateSummary{
			{CandidateID: "c1", FinalScore: 0.75},
			{CandidateID: "c2", FinalScore: 0.42},
		},
		Requirements: "criteria",
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[1].CandidateID)
	assert.Equal(t, 0.42, out[1].ReRankScore)
}

func TestRerankBatchRejectsOversizedBatch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no API call expected for an oversized batch")
	}))

	in := domain.RerankInput{Candidates: make([]domain.CandidateSummary, domain.RerankBatchSize+1)}
	_, err := c.RerankBatch(t.Context(), in)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRerankBatchEmptyInputIsNoop(t *testing.T) {
	c := testClient(t, nil)
	out, err := c.RerankBatch(t.Context(), domain.RerankInput{})
	require.NoError(t, err)
	assert.Nil(t, out)
}
