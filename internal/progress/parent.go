package progress

import (
	"fmt"
	"sync"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// ParentTracker aggregates the outcomes of a fan-out job's children.
// Percent is completed/total·100 and never regresses.
type ParentTracker struct {
	*Tracker

	mu        sync.Mutex
	total     int
	completed int
	failed    int
}

// NewParentTracker creates a tracker for a parent job with total children.
func NewParentTracker(jobID, prefix string, total int, sink domain.ProgressSink) *ParentTracker {
	return &ParentTracker{Tracker: NewTracker(jobID, prefix, sink), total: total}
}

// ChildCompleted records one successful child and pushes the recomputed
// percent.
func (p *ParentTracker) ChildCompleted(ctx domain.Context, childID string) {
	p.mu.Lock()
	p.completed++
	done, pct := p.completed+p.failed, p.percentLocked()
	p.mu.Unlock()
	p.advance(ctx, pct, fmt.Sprintf("child %s completed (%d/%d)", childID, done, p.total))
}

// ChildFailed records one failed child. Failures count toward Done but not
// toward the percent, which tracks successful children only.
func (p *ParentTracker) ChildFailed(ctx domain.Context, childID string) {
	p.mu.Lock()
	p.failed++
	done, pct := p.completed+p.failed, p.percentLocked()
	p.mu.Unlock()
	p.advance(ctx, pct, fmt.Sprintf("child %s failed (%d/%d)", childID, done, p.total))
}

// Summary reports the fan-out totals for the parent's completion record.
func (p *ParentTracker) Summary() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	rate := 0.0
	if p.total > 0 {
		rate = float64(p.completed) / float64(p.total)
	}
	return map[string]any{
		"totalChildren": p.total,
		"completed":     p.completed,
		"failed":        p.failed,
		"successRate":   rate,
	}
}

// Done reports whether every child has finished.
func (p *ParentTracker) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed+p.failed >= p.total
}

func (p *ParentTracker) percentLocked() float64 {
	if p.total == 0 {
		return 100
	}
	return float64(p.completed) / float64(p.total) * 100
}

// advance pushes an update unless it would regress below the last percent.
func (p *ParentTracker) advance(ctx domain.Context, pct float64, msg string) {
	if pct < p.Percent() {
		pct = p.Percent()
	}
	p.Update(ctx, pct, "fan_out", msg, WithMetadata(p.Summary()))
}
