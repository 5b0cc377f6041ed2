package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/resume-match-pipeline/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
)

// embedBatchLimit is the maximum number of inputs per embeddings request.
const embedBatchLimit = 128

// embedMaxAttempts and embedBackoffBase govern the embeddings retry loop.
const (
	embedMaxAttempts  = 5
	embedBackoffBase  = 1.4
	chatMaxAttempts   = 3
	chatBackoffCap    = 10 * time.Second
	parsePromptBudget = 12000 // tokens reserved for the document text
)

// Client implements domain.AIGateway against an OpenAI-compatible API.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
	breaker *CircuitBreaker
	cleaner *ResponseCleaner
	cache   *EmbedCache // nil when caching disabled
	counter *tokencount.Counter
}

// truncatePrompt trims text to the parse prompt budget when the token
// counter is available.
func (c *Client) truncatePrompt(text string) string {
	if c.counter == nil {
		return text
	}
	return c.counter.Truncate(text, parsePromptBudget)
}

// New constructs the gateway with per-operation timeouts, the shared
// circuit breaker, and the on-disk embedding cache when enabled.
func New(cfg config.Config) (*Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY missing", domain.ErrInvalidArgument)
	}
	var cache *EmbedCache
	if cfg.CacheEnabled {
		var err error
		cache, err = OpenEmbedCache(cfg.CacheDir, cfg.EmbeddingModel)
		if err != nil {
			return nil, err
		}
	}
	// the tokeniser needs its vocabulary files; without them prompts go out
	// untruncated
	counter, err := tokencount.ForModel(cfg.ChatModel)
	if err != nil {
		slog.Warn("token counter unavailable, prompt truncation disabled", slog.Any("error", err))
		counter = nil
	}
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: cfg.ChatTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		embedHC: &http.Client{Timeout: cfg.EmbedTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker: NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerTimeout),
		cleaner: NewResponseCleaner(),
		cache:   cache,
		counter: counter,
	}, nil
}

var _ domain.AIGateway = (*Client)(nil)

// Close flushes the embedding cache.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

// Breaker exposes the shared circuit breaker for readiness checks.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// chatFunction performs one chat completion forcing the given function and
// returns its arguments as raw JSON. The response must contain exactly one
// tool call; malformed arguments get one repair attempt before
// domain.ErrParseFailure.
func (c *Client) chatFunction(ctx context.Context, schema functionSchema, system, user string) (json.RawMessage, error) {
	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"temperature": 0.0,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"tools": []map[string]any{{
			"type": "function",
			"function": map[string]any{
				"name":        schema.Name,
				"description": schema.Description,
				"parameters":  schema.Parameters,
			},
		}},
		"tool_choice": map[string]any{
			"type":     "function",
			"function": map[string]any{"name": schema.Name},
		},
	}
	payload, _ := json.Marshal(body)

	var out struct {
		Choices []struct {
			Message struct {
				ToolCalls []struct {
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}

	err := c.withRetry(ctx, "chat", func() error {
		return c.breaker.Execute(func() error {
			return c.post(ctx, c.chatHC, "/chat/completions", payload, &out)
		})
	})
	if err != nil {
		return nil, err
	}

	if len(out.Choices) == 0 || len(out.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: model returned no function call", domain.ErrParseFailure)
	}
	args := out.Choices[0].Message.ToolCalls[0].Function.Arguments
	cleaned := c.cleaner.Clean(args)
	if json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}
	repaired := c.cleaner.Repair(cleaned)
	if json.Valid([]byte(repaired)) {
		slog.Warn("function arguments repaired", slog.String("function", schema.Name))
		return json.RawMessage(repaired), nil
	}
	return nil, fmt.Errorf("%w: function arguments did not parse after repair", domain.ErrParseFailure)
}

// EmbedBatch embeds texts in chunks of at most 128 inputs, deduplicating
// through the on-disk cache. Rows come back L2-normalised.
func (c *Client) EmbedBatch(ctx domain.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, t := range texts {
		if c.cache != nil {
			if v, ok := c.cache.Get(cacheKey(c.cfg.EmbeddingModel, t)); ok {
				res[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	for start := 0; start < len(missTexts); start += embedBatchLimit {
		end := start + embedBatchLimit
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vecs, err := c.embedChunk(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			normalizeL2(vec)
			idx := missIdx[start+j]
			res[idx] = vec
			if c.cache != nil {
				c.cache.Put(cacheKey(c.cfg.EmbeddingModel, missTexts[start+j]), vec)
			}
		}
	}
	return res, nil
}

// embedChunk calls the embeddings endpoint with exponential backoff base
// 1.4 plus jitter, up to five attempts.
func (c *Client) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	})
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	var lastErr error
	for attempt := 0; attempt < embedMaxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(float64(time.Second) * math.Pow(embedBackoffBase, float64(attempt-1)))
			wait += time.Duration(rand.Int63n(int64(wait)/2 + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		lastErr = c.breaker.Execute(func() error {
			return c.post(ctx, c.embedHC, "/embeddings", payload, &out)
		})
		if lastErr == nil {
			break
		}
		if !domain.IsRetryable(lastErr) {
			return nil, fmt.Errorf("op=ai.EmbedBatch: %w", lastErr)
		}
		slog.Warn("embeddings attempt failed",
			slog.Int("attempt", attempt+1), slog.Any("error", lastErr))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("op=ai.EmbedBatch: %w", lastErr)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("%w: embeddings response missing index %d", domain.ErrParseFailure, i)
		}
	}
	return vecs, nil
}

// withRetry applies the API retry policy: up to three attempts with a
// constant-multiplier backoff capped at 10s. CircuitOpen and
// non-retryable kinds stop immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.RetryInitialWait
	expo.Multiplier = 1.0
	expo.MaxInterval = chatBackoffCap
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, chatMaxAttempts-1), ctx)

	start := time.Now()
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	observability.AIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.AIRequestsTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	observability.AIRequestsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// post sends one JSON request and decodes the response, mapping HTTP
// failures onto the retryable taxonomy.
func (c *Client) post(ctx context.Context, hc *http.Client, endpoint string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OpenAIBaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)

	resp, err := hc.Do(req)
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
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", domain.ErrUpstreamRateLimit)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrUpstreamTimeout, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d: %s", domain.ErrInvalidArgument, resp.StatusCode, truncate(string(b), 200))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrParseFailure, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// normalizeL2 scales a vector to unit length in place. Zero vectors stay
// zero.
func normalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
