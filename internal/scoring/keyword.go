package scoring

import (
	"strings"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// neutralScore signals "no constraint": an empty keyword set neither rewards
// nor punishes a candidate.
const neutralScore = 0.5

// experienceKeywordWeights is the fixed action-verb dictionary used by the
// experience keyword score.
var experienceKeywordWeights = map[string]float64{
	"lead":        4.0,
	"architect":   4.0,
	"designed":    3.6,
	"built":       3.6,
	"optimized":   3.2,
	"implemented": 3.2,
	"developed":   3.0,
	"migrated":    3.0,
	"automated":   3.0,
	"scaled":      2.8,
	"deployed":    2.8,
	"improved":    2.6,
	"launched":    2.6,
	"maintained":  2.4,
	"contributed": 2.4,
}

// KeywordOverlap returns |K ∩ T| / |K| for the lowercased, trimmed keyword
// set K against resume tokens T, or 0.5 when K is empty.
func KeywordOverlap(keywords []string, tokens TokenSet) float64 {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if n := normToken(k); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	if len(cleaned) == 0 {
		return neutralScore
	}
	hits := 0
	for _, k := range cleaned {
		if tokens.Has(k) {
			hits++
		}
	}
	return float64(hits) / float64(len(cleaned))
}

// WeightedKeywordScore returns Σ w_k·[k∈T] / Σ w_k, or 0.5 when the weighted
// keyword map is empty.
func WeightedKeywordScore(weighted map[string]float64, tokens TokenSet) float64 {
	var total, matched float64
	for k, w := range weighted {
		if w <= 0 {
			continue
		}
		total += w
		if tokens.Has(k) {
			matched += w
		}
	}
	if total == 0 {
		return neutralScore
	}
	return matched / total
}

// ExperienceKeywordScore sums action-verb weights found in the lowercased
// concatenation of responsibilities keywords, achievements, the profile
// keywords line and the ATS boost line, divided by the dictionary total.
func ExperienceKeywordScore(p domain.ParsedResume) float64 {
	var b strings.Builder
	for _, exp := range p.Experience {
		b.WriteString(strings.Join(exp.ResponsibilitiesKeywords, " "))
		b.WriteString(" ")
		b.WriteString(strings.Join(exp.Achievements, " "))
		b.WriteString(" ")
	}
	b.WriteString(p.ProfileKeywordsLine)
	b.WriteString(" ")
	b.WriteString(p.ATSBoostLine)
	text := strings.ToLower(b.String())

	var total, matched float64
	for kw, w := range experienceKeywordWeights {
		total += w
		if strings.Contains(text, kw) {
			matched += w
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// Keyword component weight names. JD-supplied ScoreWeights may override any
// subset; missing names keep their defaults.
const (
	WeightRequiredSkills   = "required_skills"
	WeightPreferredSkills  = "preferred_skills"
	WeightWeightedKeywords = "weighted_keywords"
	WeightExperience       = "experience_keywords"
	WeightDomainRelevance  = "domain_relevance"
	WeightTechnicalDepth   = "technical_depth"
	WeightProjectMetrics   = "project_metrics"
	WeightResponsibilities = "responsibilities"
	WeightEducation        = "education"
)

func defaultKeywordWeights() map[string]float64 {
	return map[string]float64{
		WeightRequiredSkills:   0.18,
		WeightPreferredSkills:  0.08,
		WeightWeightedKeywords: 0.15,
		WeightExperience:       0.25,
		WeightDomainRelevance:  0.10,
		WeightTechnicalDepth:   0.10,
		WeightProjectMetrics:   0.09,
		WeightResponsibilities: 0.03,
		WeightEducation:        0.02,
	}
}

// KeywordBreakdown carries the composite keyword score and its components.
type KeywordBreakdown struct {
	Total      float64
	Components map[string]float64
}

// CompositeKeywordScore blends all keyword components with the default
// weights, or with JD-supplied overrides where present. The returned total
// is raw (pre cohort normalisation).
func CompositeKeywordScore(jd domain.JDAnalysis, p domain.ParsedResume) KeywordBreakdown {
	tokens := ResumeTokens(p)
	weights := defaultKeywordWeights()
	for name, w := range jd.ScoreWeights {
		if _, ok := weights[name]; ok && w >= 0 {
			weights[name] = w
		}
	}

	respTokens := TokenSet{}
	for _, exp := range p.Experience {
		respTokens.addAll(exp.ResponsibilitiesKeywords)
	}

	comps := map[string]float64{
		WeightRequiredSkills:   KeywordOverlap(jd.RequiredSkills, tokens),
		WeightPreferredSkills:  KeywordOverlap(jd.PreferredSkills, tokens),
		WeightWeightedKeywords: WeightedKeywordScore(jd.WeightedKeywords, tokens),
		WeightExperience:       ExperienceKeywordScore(p),
		WeightDomainRelevance:  KeywordOverlap(jd.DomainTags, tokens),
		WeightTechnicalDepth:   meanTechnicalDepth(p),
		WeightProjectMetrics:   ProjectAggregate(p.Projects),
		WeightResponsibilities: KeywordOverlap(jd.RequiredSkills, respTokens),
		WeightEducation:        bestEducationWeight(p.Education, jd).weight,
	}

	var total, weightSum float64
	for name, w := range weights {
		total += w * comps[name]
		weightSum += w
	}
	if weightSum > 0 {
		total /= weightSum
	}
	return KeywordBreakdown{Total: clamp01(total), Components: comps}
}

func meanTechnicalDepth(p domain.ParsedResume) float64 {
	if len(p.Projects) == 0 {
		return neutralScore
	}
	var sum float64
	for _, proj := range p.Projects {
		sum += proj.Metrics.TechnicalDepth
	}
	return sum / float64(len(p.Projects))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
