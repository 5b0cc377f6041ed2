package scoring

import (
	"strings"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// Composite component weights.
const (
	compHardWeight       = 0.25
	compKeywordWeight    = 0.25
	compSemanticWeight   = 0.20
	compProjectWeight    = 0.15
	compExperienceWeight = 0.10
	compEducationWeight  = 0.05
)

// Bounds for the final multipliers.
const (
	maxExperienceMultiplier = 1.2
	maxEducationMultiplier  = 1.1
)

// educationWeights maps degree keywords to a base weight; the best entry
// wins and a relevant field adds a 10% bonus.
var educationWeights = []struct {
	keyword string
	weight  float64
}{
	{"phd", 1.0},
	{"doctor", 1.0},
	{"master", 0.9},
	{"bachelor", 0.7},
	{"diploma", 0.5},
	{"certificate", 0.3},
}

type educationScore struct {
	weight        float64
	fieldRelevant bool
}

// bestEducationWeight picks the highest base weight across entries and adds
// the relevance bonus when the field overlaps a JD domain tag or required
// skill.
func bestEducationWeight(entries []domain.EducationEntry, jd domain.JDAnalysis) educationScore {
	best := educationScore{}
	for _, e := range entries {
		deg := normToken(e.Degree)
		var w float64
		for _, ew := range educationWeights {
			if strings.Contains(deg, ew.keyword) {
				w = ew.weight
				break
			}
		}
		if w == 0 {
			continue
		}
		relevant := fieldRelevant(e.Field, jd)
		if relevant {
			w *= 1.10
		}
		if w > best.weight {
			best = educationScore{weight: w, fieldRelevant: relevant}
		}
	}
	best.weight = clampTo(best.weight, 1.1)
	return best
}

func fieldRelevant(field string, jd domain.JDAnalysis) bool {
	f := normToken(field)
	if f == "" {
		return false
	}
	for _, tag := range append(append([]string{}, jd.DomainTags...), jd.RequiredSkills...) {
		t := normToken(tag)
		if t == "" {
			continue
		}
		if strings.Contains(f, t) || strings.Contains(t, f) {
			return true
		}
	}
	return false
}

// ExperienceWeight scores a candidate's years against the JD requirement:
// full credit at or above the requirement, a sliding band down to half the
// requirement, and a floor band below that.
func ExperienceWeight(years, required float64) float64 {
	if required <= 0 {
		return 1.0
	}
	switch {
	case years >= required:
		return 1.0
	case years >= required/2:
		return 0.5 + (years/required)*0.5
	default:
		denom := required
		if denom < 1 {
			denom = 1
		}
		return 0.2 + (years/denom)*0.3
	}
}

// CompositeInput carries everything the final score needs.
type CompositeInput struct {
	Keyword  float64
	Semantic float64
	Project  float64
	Hard     domain.HardRequirementsResult
	Years    float64
	JD       domain.JDAnalysis
	Resume   domain.ParsedResume
}

// CompositeResult is the capped final score with its breakdown and tier.
type CompositeResult struct {
	FinalScore float64
	Tier       domain.RankingTier
	Breakdown  map[string]float64
}

// CompositeScore blends the components, applies the hard-compliance penalty
// when the candidate fails, scales by the bounded experience and education
// multipliers, and caps at 1.0.
func CompositeScore(in CompositeInput) CompositeResult {
	expWeight := ExperienceWeight(in.Years, in.JD.MinExperienceYears)
	edu := bestEducationWeight(in.Resume.Education, in.JD)

	sum := compHardWeight*in.Hard.ComplianceScore +
		compKeywordWeight*in.Keyword +
		compSemanticWeight*in.Semantic +
		compProjectWeight*in.Project +
		compExperienceWeight*expWeight +
		compEducationWeight*clamp01(edu.weight)

	if !in.Hard.MeetsAll {
		sum *= domain.HardFailPenalty
	}

	expMult := clampTo(0.6+0.6*expWeight, maxExperienceMultiplier)
	eduMult := clampTo(0.7+0.4*edu.weight, maxEducationMultiplier)
	final := clamp01(sum * expMult * eduMult)

	return CompositeResult{
		FinalScore: final,
		Tier:       TierFor(final),
		Breakdown: map[string]float64{
			"hard_requirements": in.Hard.ComplianceScore,
			"keyword_matching":  in.Keyword,
			"semantic":          in.Semantic,
			"project":           in.Project,
			"experience_bonus":  expWeight,
			"education_bonus":   clamp01(edu.weight),
			"experience_mult":   expMult,
			"education_mult":    eduMult,
		},
	}
}

// TierFor maps a composite score to its ranking tier band.
func TierFor(score float64) domain.RankingTier {
	switch {
	case score >= 0.85:
		return domain.TierExcellent
	case score >= 0.70:
		return domain.TierGood
	case score >= 0.55:
		return domain.TierAverage
	case score >= 0.40:
		return domain.TierBelowAverage
	default:
		return domain.TierPoor
	}
}

func clampTo(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}
