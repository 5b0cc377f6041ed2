package scoring

import (
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// ProjectAggregate averages the seven rating metrics of each project with
// equal weights and returns the mean over projects, or 0.5 for a resume
// with no projects.
func ProjectAggregate(projects []domain.Project) float64 {
	if len(projects) == 0 {
		return neutralScore
	}
	var sum float64
	for _, p := range projects {
		m := p.Metrics
		sum += (m.Difficulty + m.Novelty + m.SkillRelevance + m.Complexity +
			m.TechnicalDepth + m.DomainRelevance + m.ExecutionQuality) / 7.0
	}
	return clamp01(sum / float64(len(projects)))
}

// ProjectAggregateWeighted is the alternative form weighting only skill
// relevance, domain relevance and execution quality. Kept as an option; the
// composite uses ProjectAggregate.
func ProjectAggregateWeighted(projects []domain.Project) float64 {
	if len(projects) == 0 {
		return neutralScore
	}
	var sum float64
	for _, p := range projects {
		m := p.Metrics
		sum += 0.4*m.SkillRelevance + 0.3*m.DomainRelevance + 0.3*m.ExecutionQuality
	}
	return clamp01(sum / float64(len(projects)))
}
