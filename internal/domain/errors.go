package domain

import "errors"

// Error taxonomy (sentinels). Kinds, not types: callers branch with
// errors.Is and decide per stage whether a failure is fatal or skippable.
var (
	// ErrInvalidArgument marks caller mistakes: missing API key, bad payload.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks missing backend records or files.
	ErrNotFound = errors.New("not found")
	// ErrParseFailure marks a model response with no function call or
	// arguments that did not parse after one repair attempt.
	ErrParseFailure = errors.New("parse failure")
	// ErrSchemaInvalid marks a parsed object failing schema-level checks;
	// logged as a warning, parsing continues with best-effort data.
	ErrSchemaInvalid = errors.New("schema invalid")
	// ErrCircuitOpen short-circuits LLM calls while the breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrUpstreamTimeout marks a timed-out external call (retryable).
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamRateLimit marks a 429 from an external service (retryable).
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	// ErrStageSkipped marks a non-fatal stage that reported its typed zero
	// result; the pipeline continues.
	ErrStageSkipped = errors.New("stage skipped")
	// ErrInternal is the catch-all for unexpected conditions.
	ErrInternal = errors.New("internal error")
)

// FatalJobError wraps an error that ends a job: the failure record carries
// the step at which it happened.
type FatalJobError struct {
	Step string
	Err  error
}

func (e *FatalJobError) Error() string {
	return "fatal at " + e.Step + ": " + e.Err.Error()
}

func (e *FatalJobError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalJobError at step. A nil err returns nil.
func Fatal(step string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalJobError{Step: step, Err: err}
}

// IsRetryable reports whether an error kind should be retried by the
// backoff wrapper: timeouts and rate limits, never parse or argument
// failures and never an open circuit.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, ErrUpstreamRateLimit):
		return true
	default:
		return false
	}
}
