package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

func TestProjectAggregate_NoProjectsIsNeutral(t *testing.T) {
	assert.InDelta(t, 0.5, ProjectAggregate(nil), 1e-9)
}

func TestProjectAggregate_EqualWeights(t *testing.T) {
	p := domain.Project{Metrics: domain.ProjectMetrics{
		Difficulty:       0.7,
		Novelty:          0.7,
		SkillRelevance:   0.7,
		Complexity:       0.7,
		TechnicalDepth:   0.7,
		DomainRelevance:  0.7,
		ExecutionQuality: 0.7,
	}}
	assert.InDelta(t, 0.7, ProjectAggregate([]domain.Project{p}), 1e-9)
}

func TestProjectAggregate_MeanOverProjects(t *testing.T) {
	high := domain.Project{Metrics: domain.ProjectMetrics{
		Difficulty: 1, Novelty: 1, SkillRelevance: 1, Complexity: 1,
		TechnicalDepth: 1, DomainRelevance: 1, ExecutionQuality: 1,
	}}
	low := domain.Project{} // all metrics zero
	assert.InDelta(t, 0.5, ProjectAggregate([]domain.Project{high, low}), 1e-9)
}

func TestProjectAggregateWeighted(t *testing.T) {
	p := domain.Project{Metrics: domain.ProjectMetrics{
		SkillRelevance:   1.0,
		DomainRelevance:  0.5,
		ExecutionQuality: 0.0,
		// metrics outside the weighted form must not contribute
		Difficulty: 1.0, Novelty: 1.0,
	}}
	got := ProjectAggregateWeighted([]domain.Project{p})
	assert.InDelta(t, 0.4*1.0+0.3*0.5, got, 1e-9)
}

func TestProjectAggregateWeighted_NoProjectsIsNeutral(t *testing.T) {
	assert.InDelta(t, 0.5, ProjectAggregateWeighted(nil), 1e-9)
}
