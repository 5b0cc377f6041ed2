// Package scoring implements the pure, deterministic scoring kernel:
// keyword overlap, section-wise semantic similarity, project aggregates,
// the hard-requirements check, and the composite final score.
package scoring

import (
	"strings"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// inferredConfidenceFloor is the minimum confidence for an inferred skill to
// contribute to the resume token set.
const inferredConfidenceFloor = 0.6

func normToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TokenSet is a normalised set of resume tokens.
type TokenSet map[string]struct{}

// Has reports membership of the normalised form of tok.
func (t TokenSet) Has(tok string) bool {
	_, ok := t[normToken(tok)]
	return ok
}

func (t TokenSet) add(tok string) {
	tok = normToken(tok)
	if tok != "" {
		t[tok] = struct{}{}
	}
}

func (t TokenSet) addAll(toks []string) {
	for _, tok := range toks {
		t.add(tok)
	}
}

// addLine splits a free-text keyword line on commas, slashes and semicolons
// and additionally adds each whitespace-separated single word.
func (t TokenSet) addLine(line string) {
	parts := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '/' || r == ';'
	})
	t.addAll(parts)
	for _, w := range strings.Fields(line) {
		t.add(strings.Trim(w, ",/;"))
	}
}

// ResumeTokens builds the token set used by keyword matching: canonical
// skills across all categories, inferred skills above the confidence floor,
// proficiency skills, project tech keywords and primary skills, experience
// primary tech and responsibilities keywords, split parts and single words
// of the profile keywords and ATS boost lines, and domain tags.
func ResumeTokens(p domain.ParsedResume) TokenSet {
	t := TokenSet{}
	for _, skills := range p.CanonicalSkills {
		t.addAll(skills)
	}
	for _, inf := range p.InferredSkills {
		if inf.Confidence >= inferredConfidenceFloor {
			t.add(inf.Skill)
		}
	}
	for _, sp := range p.SkillProficiency {
		t.add(sp.Skill)
	}
	for _, proj := range p.Projects {
		t.addAll(proj.TechKeywords)
		t.addAll(proj.PrimarySkills)
	}
	for _, exp := range p.Experience {
		t.addAll(exp.PrimaryTech)
		t.addAll(exp.ResponsibilitiesKeywords)
	}
	t.addLine(p.ProfileKeywordsLine)
	t.addLine(p.ATSBoostLine)
	t.addAll(p.DomainTags)
	return t
}
