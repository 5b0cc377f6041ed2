package scoring

import (
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// Cosine thresholds and blend weights for the section score.
const (
	coverageThreshold = 0.65 // τ_cov: JD sentence considered covered
	densityThreshold  = 0.55 // τ_res: resume sentence considered on-topic
	coverageWeight    = 0.5
	depthWeight       = 0.4
	densityWeight     = 0.1
)

// sectionWeights blends per-section scores into the overall semantic score.
var sectionWeights = map[string]float64{
	domain.SectionSkills:           0.30,
	domain.SectionProjects:         0.25,
	domain.SectionResponsibilities: 0.20,
	domain.SectionProfile:          0.10,
	domain.SectionEducation:        0.05,
	domain.SectionOverall:          0.10,
}

// SectionScore computes the semantic score of one section from the JD
// matrix (m×d) and the resume matrix (n×d), rows L2-normalised.
//
// An empty JD matrix is no constraint (0.5); a non-empty JD matrix against
// an empty resume matrix scores 0.
func SectionScore(jd, resume [][]float32) float64 {
	if len(jd) == 0 {
		return neutralScore
	}
	if len(resume) == 0 {
		return 0
	}

	m, n := len(jd), len(resume)
	rowMax := make([]float64, m)
	colMax := make([]float64, n)
	for i := range jd {
		for j := range resume {
			c := dot(jd[i], resume[j])
			if c > rowMax[i] {
				rowMax[i] = c
			}
			if c > colMax[j] {
				colMax[j] = c
			}
		}
	}

	covered := 0
	var depthSum float64
	for _, v := range rowMax {
		if v >= coverageThreshold {
			covered++
		}
		depthSum += v
	}
	dense := 0
	for _, v := range colMax {
		if v >= densityThreshold {
			dense++
		}
	}

	cov := float64(covered) / float64(m)
	depth := depthSum / float64(m)
	dens := float64(dense) / float64(n)
	return coverageWeight*cov + depthWeight*depth + densityWeight*dens
}

// SemanticBreakdown carries the blended semantic score and the per-section
// scores that produced it.
type SemanticBreakdown struct {
	Total    float64
	Sections map[string]float64
}

// SemanticScore blends all six section scores with the fixed section
// weights. The returned total is raw (pre cohort normalisation).
func SemanticScore(jd, resume *domain.SectionEmbeddings) SemanticBreakdown {
	sections := make(map[string]float64, len(domain.Sections))
	var total float64
	for _, name := range domain.Sections {
		s := SectionScore(jd.Section(name), resume.Section(name))
		sections[name] = s
		total += sectionWeights[name] * s
	}
	return SemanticBreakdown{Total: clamp01(total), Sections: sections}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
