// Package usecase orchestrates the three job kinds: JD parsing, the
// per-resume stage pipeline, and ranking fan-out/fan-in. It depends only on
// domain ports and the scoring kernel.
package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/pkg/textx"
)

// maxSectionRows bounds how many sentences one section embeds. Overlong
// documents keep their leading sentences.
const maxSectionRows = 64

// jdSectionTexts derives the six embedding sections from a parsed JD. An
// empty section embeds nothing and scores as "no constraint".
func jdSectionTexts(job domain.Job) map[string][]string {
	a := job.Analysis
	out := map[string][]string{}
	if a == nil {
		return out
	}

	profile := []string{}
	if a.RoleTitle != "" {
		profile = append(profile, strings.TrimSpace(a.RoleTitle+" "+a.Seniority))
	}
	profile = append(profile, textx.SplitSentences(a.Summary)...)
	out[domain.SectionProfile] = capRows(profile)

	skills := append([]string{}, a.RequiredSkills...)
	skills = append(skills, a.PreferredSkills...)
	out[domain.SectionSkills] = capRows(skills)

	projects := append([]string{}, a.DomainTags...)
	for kw := range a.WeightedKeywords {
		projects = append(projects, kw)
	}
	out[domain.SectionProjects] = capRows(projects)

	out[domain.SectionResponsibilities] = capRows(a.HRNotes)

	education := []string{}
	for _, block := range []domain.ComplianceBlock{
		a.FilterRequirements.Mandatory, a.FilterRequirements.Soft,
	} {
		for _, spec := range block.Structured {
			if spec.Kind == domain.RequirementEducation && spec.Specified && spec.Degree != "" {
				education = append(education, spec.Degree)
			}
		}
	}
	out[domain.SectionEducation] = capRows(education)

	out[domain.SectionOverall] = capRows(textx.SplitSentences(job.JDText))
	return out
}

// resumeSectionTexts derives the six embedding sections from a parsed
// resume.
func resumeSectionTexts(p domain.ParsedResume) map[string][]string {
	out := map[string][]string{}

	profile := []string{}
	if p.CurrentRole != "" || p.Location != "" {
		profile = append(profile, strings.TrimSpace(p.CurrentRole+" "+p.Location))
	}
	profile = append(profile, splitLine(p.ProfileKeywordsLine)...)
	out[domain.SectionProfile] = capRows(profile)

	skills := []string{}
	for _, toks := range p.CanonicalSkills {
		skills = append(skills, toks...)
	}
	for _, sp := range p.SkillProficiency {
		skills = append(skills, strings.TrimSpace(sp.Skill+" "+sp.Level))
	}
	out[domain.SectionSkills] = capRows(skills)

	projects := []string{}
	for _, prj := range p.Projects {
		if prj.Name != "" {
			projects = append(projects, prj.Name)
		}
		projects = append(projects, textx.SplitSentences(prj.Description)...)
	}
	out[domain.SectionProjects] = capRows(projects)

	resp := []string{}
	for _, exp := range p.Experience {
		resp = append(resp, exp.ResponsibilitiesKeywords...)
		resp = append(resp, exp.Achievements...)
	}
	out[domain.SectionResponsibilities] = capRows(resp)

	education := []string{}
	for _, e := range p.Education {
		education = append(education, strings.TrimSpace(fmt.Sprintf("%s %s %s", e.Degree, e.Field, e.Institution)))
	}
	out[domain.SectionEducation] = capRows(education)

	overall := append([]string{}, out[domain.SectionProfile]...)
	overall = append(overall, out[domain.SectionSkills]...)
	overall = append(overall, out[domain.SectionProjects]...)
	overall = append(overall, out[domain.SectionResponsibilities]...)
	out[domain.SectionOverall] = capRows(overall)
	return out
}

// embedSections embeds all section sentences in one gateway call and splits
// the rows back into per-section matrices.
func embedSections(ctx domain.Context, ai domain.AIGateway, texts map[string][]string) (*domain.SectionEmbeddings, error) {
	flat := []string{}
	offsets := map[string][2]int{}
	for _, name := range domain.Sections {
		rows := texts[name]
		offsets[name] = [2]int{len(flat), len(flat) + len(rows)}
		flat = append(flat, rows...)
	}

	emb := &domain.SectionEmbeddings{}
	if len(flat) == 0 {
		return emb, nil
	}
	vecs, err := ai.EmbedBatch(ctx, flat)
	if err != nil {
		return nil, err
	}
	for _, name := range domain.Sections {
		o := offsets[name]
		if o[1] > o[0] {
			emb.SetSection(name, vecs[o[0]:o[1]])
		}
	}
	return emb, nil
}

func capRows(rows []string) []string {
	clean := rows[:0]
	for _, r := range rows {
		if s := strings.TrimSpace(r); s != "" {
			clean = append(clean, s)
		}
	}
	if len(clean) > maxSectionRows {
		clean = clean[:maxSectionRows]
	}
	return clean
}

func splitLine(line string) []string {
	parts := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == '/' || r == ';'
	})
	out := parts[:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
