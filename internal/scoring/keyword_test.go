package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

func TestKeywordOverlap_RequiredSkills(t *testing.T) {
	// JD requires {Python, SQL}; canonical Python plus inferred SQL at 0.8
	// confidence both count.
	p := domain.ParsedResume{
		CanonicalSkills: map[string][]string{"programming": {"Python"}},
		InferredSkills:  []domain.InferredSkill{{Skill: "SQL", Confidence: 0.8}},
	}
	tokens := ResumeTokens(p)
	got := KeywordOverlap([]string{"Python", "SQL"}, tokens)
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestKeywordOverlap_EmptyKeywordsIsNeutral(t *testing.T) {
	tokens := ResumeTokens(domain.ParsedResume{})
	assert.InDelta(t, 0.5, KeywordOverlap(nil, tokens), 1e-9)
	assert.InDelta(t, 0.5, KeywordOverlap([]string{"  ", ""}, tokens), 1e-9)
}

func TestKeywordOverlap_LowConfidenceInferredSkillIgnored(t *testing.T) {
	p := domain.ParsedResume{
		InferredSkills: []domain.InferredSkill{{Skill: "SQL", Confidence: 0.5}},
	}
	got := KeywordOverlap([]string{"SQL"}, ResumeTokens(p))
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestWeightedKeywordScore(t *testing.T) {
	p := domain.ParsedResume{
		CanonicalSkills: map[string][]string{"cloud": {"aws"}},
	}
	tokens := ResumeTokens(p)
	got := WeightedKeywordScore(map[string]float64{"aws": 0.6, "kubernetes": 0.4}, tokens)
	assert.InDelta(t, 0.6, got, 1e-9)
}

func TestWeightedKeywordScore_Empty(t *testing.T) {
	assert.InDelta(t, 0.5, WeightedKeywordScore(nil, TokenSet{}), 1e-9)
}

func TestResumeTokens_SplitsKeywordLines(t *testing.T) {
	p := domain.ParsedResume{
		ProfileKeywordsLine: "distributed systems, go/kubernetes; grpc",
	}
	tokens := ResumeTokens(p)
	// comma/slash/semicolon parts
	assert.True(t, tokens.Has("distributed systems"))
	assert.True(t, tokens.Has("grpc"))
	// single whitespace-split words
	assert.True(t, tokens.Has("distributed"))
	assert.True(t, tokens.Has("systems"))
	assert.True(t, tokens.Has("go"))
	assert.True(t, tokens.Has("kubernetes"))
}

func TestExperienceKeywordScore(t *testing.T) {
	p := domain.ParsedResume{
		Experience: []domain.ExperienceEntry{{
			ResponsibilitiesKeywords: []string{"lead backend team"},
			Achievements:             []string{"optimized query latency"},
		}},
	}
	got := ExperienceKeywordScore(p)
	var total float64
	for _, w := range experienceKeywordWeights {
		total += w
	}
	// lead (4.0) + optimized (3.2) over the dictionary total
	assert.InDelta(t, (4.0+3.2)/total, got, 1e-9)
}

func TestExperienceKeywordScore_NoMatches(t *testing.T) {
	assert.InDelta(t, 0.0, ExperienceKeywordScore(domain.ParsedResume{}), 1e-9)
}

func TestCompositeKeywordScore_EmptyRequiredSkillsDoesNotZeroTotal(t *testing.T) {
	jd := domain.JDAnalysis{} // no keyword constraints at all
	p := domain.ParsedResume{}
	bd := CompositeKeywordScore(jd, p)
	// neutral 0.5 components keep the total well above zero
	assert.Greater(t, bd.Total, 0.2)
	assert.InDelta(t, 0.5, bd.Components[WeightRequiredSkills], 1e-9)
}

func TestCompositeKeywordScore_WeightOverride(t *testing.T) {
	jd := domain.JDAnalysis{
		RequiredSkills: []string{"go"},
		ScoreWeights:   map[string]float64{WeightRequiredSkills: 1.0},
	}
	p := domain.ParsedResume{CanonicalSkills: map[string][]string{"langs": {"Go"}}}
	bd := CompositeKeywordScore(jd, p)
	require.InDelta(t, 1.0, bd.Components[WeightRequiredSkills], 1e-9)
	// required_skills now dominates the blend
	assert.Greater(t, bd.Total, 0.6)
}

func TestCompositeKeywordScore_InRange(t *testing.T) {
	jd := domain.JDAnalysis{
		RequiredSkills:   []string{"go", "postgres"},
		PreferredSkills:  []string{"kafka"},
		WeightedKeywords: map[string]float64{"aws": 0.6, "terraform": 0.4},
		DomainTags:       []string{"fintech"},
	}
	p := domain.ParsedResume{
		CanonicalSkills: map[string][]string{"langs": {"go"}},
		Projects: []domain.Project{{
			Metrics: domain.ProjectMetrics{Difficulty: 0.8, TechnicalDepth: 0.9},
		}},
	}
	bd := CompositeKeywordScore(jd, p)
	assert.GreaterOrEqual(t, bd.Total, 0.0)
	assert.LessOrEqual(t, bd.Total, 1.0)
}
