package progress

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

type captureSink struct {
	jobIDs  []string
	records []domain.ProgressRecord
}

func (c *captureSink) Publish(_ domain.Context, jobID string, rec domain.ProgressRecord) error {
	c.jobIDs = append(c.jobIDs, jobID)
	c.records = append(c.records, rec)
	return nil
}

func TestTrackerClampsPercent(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("job-1", "[job-1]", sink)

	tr.Update(t.Context(), -5, "fetch_resume", "")
	tr.Update(t.Context(), 140, "persist", "")

	require.Len(t, sink.records, 2)
	assert.Equal(t, 0.0, sink.records[0].Percent)
	assert.Equal(t, 100.0, sink.records[1].Percent)
	assert.Equal(t, "progress", sink.records[0].Status)
}

func TestTrackerAllowsNonMonotonicUpdates(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("job-1", "[job-1]", sink)

	tr.Update(t.Context(), 50, "embed", "")
	tr.Update(t.Context(), 30, "parse", "")

	// backwards updates still publish
	require.Len(t, sink.records, 2)
	assert.Equal(t, 30.0, sink.records[1].Percent)
	assert.Equal(t, 30.0, tr.Percent())
}

func TestTrackerCompleteRecord(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("job-1", "[job-1]", sink)
	tr.Complete(t.Context(), "all resumes scored", WithMetadata(map[string]any{"scored": 20}))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, 100.0, rec.Percent)
	assert.Equal(t, "completed", rec.Status)
	assert.NotEmpty(t, rec.Timestamp)
	assert.Equal(t, 20, rec.Metadata["scored"])
}

func TestTrackerFailedRecordCarriesKind(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("job-1", "[2/9][resume-4]", sink)
	tr.Update(t.Context(), 40, "parse", "")
	tr.Failed(t.Context(), "parse", domain.Fatal("parse", domain.ErrParseFailure))

	rec := sink.records[len(sink.records)-1]
	assert.Equal(t, "failed", rec.Status)
	assert.Equal(t, "parse", rec.Stage)
	assert.Equal(t, "fatal", rec.ErrorKind)
	assert.False(t, rec.Retryable)
	assert.Equal(t, 40.0, rec.Percent)
}

func TestTrackerFailedRetryableKinds(t *testing.T) {
	sink := &captureSink{}
	tr := NewTracker("job-1", "[job-1]", sink)
	tr.Failed(t.Context(), "embed", domain.ErrUpstreamRateLimit)

	rec := sink.records[0]
	assert.Equal(t, "rate_limit", rec.ErrorKind)
	assert.True(t, rec.Retryable)
}

func TestTrackerNilSinkIsLogOnly(t *testing.T) {
	tr := NewTracker("job-1", "[job-1]", nil)
	tr.Update(t.Context(), 10, "fetch_resume", "")
	tr.Complete(t.Context(), "")
	tr.Failed(t.Context(), "x", errors.New("boom"))
}

func TestParentTrackerPercentNeverRegresses(t *testing.T) {
	sink := &captureSink{}
	p := NewParentTracker("group-1", "[group-1]", 4, sink)

	p.ChildCompleted(t.Context(), "r1")
	assert.Equal(t, 25.0, p.Percent())
	p.ChildFailed(t.Context(), "r2")
	// a failure does not advance completed/total but must not regress either
	assert.Equal(t, 25.0, p.Percent())
	p.ChildCompleted(t.Context(), "r3")
	assert.Equal(t, 50.0, p.Percent())
	assert.False(t, p.Done())
	p.ChildCompleted(t.Context(), "r4")
	assert.True(t, p.Done())
}

func TestParentTrackerSummary(t *testing.T) {
	p := NewParentTracker("group-1", "[group-1]", 4, nil)
	p.ChildCompleted(t.Context(), "r1")
	p.ChildCompleted(t.Context(), "r2")
	p.ChildFailed(t.Context(), "r3")

	s := p.Summary()
	assert.Equal(t, 4, s["totalChildren"])
	assert.Equal(t, 2, s["completed"])
	assert.Equal(t, 1, s["failed"])
	assert.InDelta(t, 0.5, s["successRate"].(float64), 1e-9)
}

func TestParentTrackerZeroChildren(t *testing.T) {
	p := NewParentTracker("group-1", "[group-1]", 0, nil)
	assert.True(t, p.Done())
	assert.Equal(t, 0.0, p.Summary()["successRate"])
}
