package scoring

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// CheckHardRequirements evaluates every specified field of the mandatory
// compliance block against the parsed resume. Unknown requirement kinds
// pass; a block with no specified fields yields compliance 1.0 and
// meets_all true.
func CheckHardRequirements(block domain.ComplianceBlock, p domain.ParsedResume, years float64) domain.HardRequirementsResult {
	res := domain.HardRequirementsResult{MeetsAll: true, ComplianceScore: 1.0, Met: []string{}, Missing: []string{}}

	names := make([]string, 0, len(block.Structured))
	for name, spec := range block.Structured {
		if spec.Specified {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return res
	}

	passed := 0
	for _, name := range names {
		spec := block.Structured[name]
		ok := true
		switch spec.Kind {
		case domain.RequirementExperience:
			ok = years >= spec.MinYears
		case domain.RequirementHardSkills:
			ok = hasAllSkills(spec.Skills, p)
		case domain.RequirementEducation:
			ok = hasDegree(spec.Degree, p.Education)
		case domain.RequirementLocation:
			ok = locationMatches(spec.Location, p.Location)
		default:
			// unknown kind: pass until the kind is added explicitly
		}
		if ok {
			passed++
			res.Met = append(res.Met, name)
		} else {
			res.MeetsAll = false
			res.Missing = append(res.Missing, name)
		}
	}
	res.ComplianceScore = float64(passed) / float64(len(names))
	return res
}

// hasAllSkills requires every required skill to substring-match, in either
// direction, some normalised resume skill.
func hasAllSkills(required []string, p domain.ParsedResume) bool {
	resumeSkills := resumeSkillList(p)
	for _, req := range required {
		reqNorm := normToken(req)
		if reqNorm == "" {
			continue
		}
		found := false
		for _, have := range resumeSkills {
			if strings.Contains(have, reqNorm) || strings.Contains(reqNorm, have) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func resumeSkillList(p domain.ParsedResume) []string {
	out := []string{}
	for _, skills := range p.CanonicalSkills {
		for _, s := range skills {
			if n := normToken(s); n != "" {
				out = append(out, n)
			}
		}
	}
	for _, inf := range p.InferredSkills {
		if inf.Confidence >= inferredConfidenceFloor {
			if n := normToken(inf.Skill); n != "" {
				out = append(out, n)
			}
		}
	}
	for _, sp := range p.SkillProficiency {
		if n := normToken(sp.Skill); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func hasDegree(required string, entries []domain.EducationEntry) bool {
	reqNorm := normToken(required)
	if reqNorm == "" {
		return true
	}
	for _, e := range entries {
		deg := normToken(e.Degree)
		if deg == "" {
			continue
		}
		if strings.Contains(deg, reqNorm) || strings.Contains(reqNorm, deg) {
			return true
		}
	}
	return false
}

func locationMatches(required, have string) bool {
	reqNorm := normToken(required)
	if reqNorm == "" || reqNorm == "any" || reqNorm == "remote" {
		return true
	}
	haveNorm := normToken(have)
	if haveNorm == "" {
		return false
	}
	if haveNorm == "remote" {
		return true
	}
	return strings.Contains(haveNorm, reqNorm) || strings.Contains(reqNorm, haveNorm)
}
