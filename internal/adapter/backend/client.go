// Package backend implements the HTTP client for the backend API that owns
// persistent storage for jobs, resumes and scores.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// APIError is a typed error for a non-success backend response.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// Unwrap maps server-side statuses onto the retryable taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return domain.ErrUpstreamRateLimit
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status >= 500:
		return domain.ErrUpstreamTimeout
	default:
		return domain.ErrInternal
	}
}

// envelope is the uniform {success, data, error} response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client implements domain.Backend over the backend HTTP API.
type Client struct {
	baseURL     string
	apiKey      string
	hc          *http.Client
	maxAttempts int
	initialWait time.Duration
	maxWait     time.Duration
}

// New constructs a backend client with an instrumented transport and the
// configured timeout and retry policy.
func New(cfg config.Config) *Client {
	return &Client{
		baseURL: cfg.BackendAPIURL,
		apiKey:  cfg.BackendAPIKey,
		hc: &http.Client{
			Timeout:   cfg.BackendTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxAttempts: cfg.RetryMaxAttempts,
		initialWait: cfg.RetryInitialWait,
		maxWait:     cfg.RetryMaxWait,
	}
}

var _ domain.Backend = (*Client)(nil)

// GetJob reads a job with its JD analysis and embeddings.
func (c *Client) GetJob(ctx domain.Context, id string) (domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+id, nil, &job); err != nil {
		return domain.Job{}, fmt.Errorf("op=backend.GetJob: %w", err)
	}
	return job, nil
}

// UpdateJDParsed writes back the structured JD analysis.
func (c *Client) UpdateJDParsed(ctx domain.Context, jobID string, analysis domain.JDAnalysis) error {
	body := map[string]any{"job_id": jobID, "jd_analysis": analysis}
	if err := c.do(ctx, http.MethodPost, "/updates/jd/parsed", body, nil); err != nil {
		return fmt.Errorf("op=backend.UpdateJDParsed: %w", err)
	}
	return nil
}

// UpdateJDCompliance writes back the parsed filter requirements.
func (c *Client) UpdateJDCompliance(ctx domain.Context, jobID string, fr domain.FilterRequirements) error {
	body := map[string]any{"job_id": jobID, "filter_requirements": fr}
	if err := c.do(ctx, http.MethodPost, "/updates/jd/compliance", body, nil); err != nil {
		return fmt.Errorf("op=backend.UpdateJDCompliance: %w", err)
	}
	return nil
}

// UpdateJDEmbeddings writes back the six JD section matrices.
func (c *Client) UpdateJDEmbeddings(ctx domain.Context, jobID string, emb domain.SectionEmbeddings) error {
	body := map[string]any{"job_id": jobID, "jd_embedding": emb}
	if err := c.do(ctx, http.MethodPost, "/updates/jd/embeddings", body, nil); err != nil {
		return fmt.Errorf("op=backend.UpdateJDEmbeddings: %w", err)
	}
	return nil
}

// UpdateJDStatus transitions the job status.
func (c *Client) UpdateJDStatus(ctx domain.Context, jobID string, status domain.JobStatus) error {
	body := map[string]any{"job_id": jobID, "status": status}
	if err := c.do(ctx, http.MethodPost, "/updates/jd/status", body, nil); err != nil {
		return fmt.Errorf("op=backend.UpdateJDStatus: %w", err)
	}
	return nil
}

// GetResume reads one resume record.
func (c *Client) GetResume(ctx domain.Context, id string) (domain.Resume, error) {
	var r domain.Resume
	if err := c.do(ctx, http.MethodGet, "/updates/resume/"+id, nil, &r); err != nil {
		return domain.Resume{}, fmt.Errorf("op=backend.GetResume: %w", err)
	}
	return r, nil
}

// UpdateResume applies a partial update to a resume record.
func (c *Client) UpdateResume(ctx domain.Context, id string, patch domain.ResumePatch) error {
	if err := c.do(ctx, http.MethodPut, "/updates/resume/"+id, patch, nil); err != nil {
		return fmt.Errorf("op=backend.UpdateResume: %w", err)
	}
	return nil
}

// SubmitScore persists a score record for a (job, resume) pair.
func (c *Client) SubmitScore(ctx domain.Context, rec domain.ScoreRecord) error {
	if err := c.do(ctx, http.MethodPost, "/updates/score", rec, nil); err != nil {
		return fmt.Errorf("op=backend.SubmitScore: %w", err)
	}
	return nil
}

// ListScores returns all scores for a job, for ranking fan-in.
func (c *Client) ListScores(ctx domain.Context, jobID string) ([]domain.ScoreRecord, error) {
	var out []domain.ScoreRecord
	if err := c.do(ctx, http.MethodGet, "/updates/scores/"+jobID, nil, &out); err != nil {
		return nil, fmt.Errorf("op=backend.ListScores: %w", err)
	}
	return out, nil
}

// do performs one request with the retry policy: retryable kinds (5xx,
// timeouts, rate limits) are retried up to maxAttempts with exponential
// backoff capped at maxWait.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal body: %v", domain.ErrInvalidArgument, err)
		}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initialWait
	expo.MaxInterval = c.maxWait
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxAttempts-1)), ctx)

	op := func() error {
		err := c.once(ctx, method, endpoint, payload, out)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, policy)
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rd)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTimeout, err)
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: "malformed envelope"}
	}
	if !env.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: env.Error}
		slog.Warn("backend call failed",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("error", env.Error))
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &APIError{Endpoint: endpoint, Status: resp.StatusCode, Message: "malformed data payload"}
		}
	}
	return nil
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
