// Package progress reports standardised progress, completion and failure
// records for queue jobs. Records flow through a ProgressSink for external
// observers; every event also logs one emoji-tagged line.
package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// Tracker reports progress for one queue job. Prefix identifies the job in
// log lines, e.g. "[job-1]" or "[3/20][resume-7]".
type Tracker struct {
	jobID  string
	prefix string
	sink   domain.ProgressSink
	start  time.Time

	lastPercent float64
}

// NewTracker creates a tracker for a job. A nil sink is allowed and turns
// publishing into log-only mode.
func NewTracker(jobID, prefix string, sink domain.ProgressSink) *Tracker {
	return &Tracker{jobID: jobID, prefix: prefix, sink: sink, start: time.Now()}
}

// Update pushes a progress record. Percent is clamped to [0,100];
// non-monotonic updates go through but are logged.
func (t *Tracker) Update(ctx domain.Context, percent float64, step, message string, opts ...Option) {
	percent = clampPercent(percent)
	if percent < t.lastPercent {
		slog.Warn(fmt.Sprintf("⚙️ %s progress went backwards", t.prefix),
			slog.Float64("from", t.lastPercent), slog.Float64("to", percent),
			slog.String("step", step))
	}
	t.lastPercent = percent

	rec := t.record(percent, step, "progress")
	rec.Message = message
	for _, opt := range opts {
		opt(&rec)
	}
	t.publish(ctx, rec)
	slog.Info(fmt.Sprintf("⚙️ %s %s", t.prefix, step),
		slog.Float64("percent", percent), slog.String("message", message))
}

// Complete pushes the terminal success record at 100%.
func (t *Tracker) Complete(ctx domain.Context, message string, opts ...Option) {
	t.lastPercent = 100
	rec := t.record(100, "completed", "completed")
	rec.Message = message
	for _, opt := range opts {
		opt(&rec)
	}
	t.publish(ctx, rec)
	slog.Info(fmt.Sprintf("✅ %s completed", t.prefix),
		slog.String("message", message),
		slog.Float64("duration_seconds", rec.Duration))
}

// Failed pushes the terminal failure record, carrying the stage and whether
// the substrate should retry.
func (t *Tracker) Failed(ctx domain.Context, stage string, err error, opts ...Option) {
	rec := t.record(t.lastPercent, stage, "failed")
	rec.Stage = stage
	rec.Error = err.Error()
	rec.ErrorKind = errorKind(err)
	rec.Retryable = domain.IsRetryable(err)
	for _, opt := range opts {
		opt(&rec)
	}
	t.publish(ctx, rec)
	slog.Error(fmt.Sprintf("❌ %s failed at %s", t.prefix, stage),
		slog.Any("error", err),
		slog.String("error_kind", rec.ErrorKind),
		slog.Bool("retryable", rec.Retryable))
}

// Percent returns the last reported percent.
func (t *Tracker) Percent() float64 { return t.lastPercent }

// Option mutates a record before it is published.
type Option func(*domain.ProgressRecord)

// WithStage sets the stage name on a progress record.
func WithStage(stage string) Option {
	return func(r *domain.ProgressRecord) { r.Stage = stage }
}

// WithMetadata attaches metadata to a record.
func WithMetadata(md map[string]any) Option {
	return func(r *domain.ProgressRecord) { r.Metadata = md }
}

func (t *Tracker) record(percent float64, step, status string) domain.ProgressRecord {
	return domain.ProgressRecord{
		Percent:   percent,
		Step:      step,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  time.Since(t.start).Seconds(),
	}
}

func (t *Tracker) publish(ctx domain.Context, rec domain.ProgressRecord) {
	if t.sink == nil {
		return
	}
	if err := t.sink.Publish(ctx, t.jobID, rec); err != nil {
		// observers missing an update must never fail the job
		slog.Warn(fmt.Sprintf("⚙️ %s progress publish failed", t.prefix), slog.Any("error", err))
	}
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// errorKind maps an error chain to its reporting label.
func errorKind(err error) string {
	var fatal *domain.FatalJobError
	switch {
	case errors.As(err, &fatal):
		return "fatal"
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return "rate_limit"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, domain.ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, domain.ErrSchemaInvalid):
		return "schema_invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}
