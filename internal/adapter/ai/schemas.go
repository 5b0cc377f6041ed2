package ai

import (
	"fmt"
	"strings"
)

// functionSchema is one tool/function declaration sent with a chat call.
// The model is forced to answer with exactly this function.
type functionSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func arrayOf(items map[string]any, desc string) map[string]any {
	return map[string]any{"type": "array", "items": items, "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	o := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		o["required"] = required
	}
	return o
}

func ratings() map[string]any {
	return object(map[string]any{
		"difficulty":        prop("number", "0..1"),
		"novelty":           prop("number", "0..1"),
		"skill_relevance":   prop("number", "0..1"),
		"complexity":        prop("number", "0..1"),
		"technical_depth":   prop("number", "0..1"),
		"domain_relevance":  prop("number", "0..1"),
		"execution_quality": prop("number", "0..1"),
	})
}

// jdSchema declares the structured JD analysis function.
func jdSchema() functionSchema {
	return functionSchema{
		Name:        "record_jd_analysis",
		Description: "Record the structured analysis of a job description.",
		Parameters: object(map[string]any{
			"role_title":  prop("string", "Canonical role title"),
			"seniority":   prop("string", "Seniority level, e.g. junior, senior, staff"),
			"summary":     prop("string", "One-paragraph summary of the role"),
			"hr_notes":    arrayOf(prop("string", ""), "Free-form HR notes found in the JD"),
			"domain_tags": arrayOf(prop("string", ""), "Business/technology domain tags"),
			"required_skills": arrayOf(prop("string", ""),
				"Skills the role cannot be done without, canonical lowercase"),
			"preferred_skills": arrayOf(prop("string", ""), "Nice-to-have skills"),
			"weighted_keywords": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
				"description":          "Keyword to weight in [0,1]",
			},
			"min_experience_years": prop("number", "Minimum years of experience, 0 if unstated"),
		}, "role_title", "required_skills"),
	}
}

// resumeSchema declares the structured resume parse function.
func resumeSchema() functionSchema {
	return functionSchema{
		Name:        "record_parsed_resume",
		Description: "Record the structured content of a candidate resume.",
		Parameters: object(map[string]any{
			"name":             prop("string", "Candidate display name"),
			"email":            prop("string", ""),
			"phone":            prop("string", ""),
			"location":         prop("string", "City/country or 'remote'"),
			"current_role":     prop("string", ""),
			"years_experience": prop("number", "Total years of professional experience"),
			"canonical_skills": map[string]any{
				"type":                 "object",
				"additionalProperties": arrayOf(prop("string", ""), ""),
				"description":          "Category to sorted lowercase skill tokens",
			},
			"inferred_skills": arrayOf(object(map[string]any{
				"skill":      prop("string", ""),
				"confidence": prop("number", "0..1"),
				"provenance": prop("string", "Where the inference came from"),
			}, "skill", "confidence"), "Skills inferred from context rather than stated"),
			"skill_proficiency": arrayOf(object(map[string]any{
				"skill": prop("string", ""),
				"level": prop("string", "beginner|intermediate|advanced|expert"),
			}), ""),
			"projects": arrayOf(object(map[string]any{
				"name":           prop("string", ""),
				"description":    prop("string", ""),
				"tech_keywords":  arrayOf(prop("string", ""), ""),
				"primary_skills": arrayOf(prop("string", ""), ""),
				"metrics":        ratings(),
			}), "Projects with seven metric ratings each in [0,1]"),
			"experience": arrayOf(object(map[string]any{
				"company":                   prop("string", ""),
				"title":                     prop("string", ""),
				"start_year":                prop("integer", ""),
				"end_year":                  prop("integer", "0 for current position"),
				"primary_tech":              arrayOf(prop("string", ""), ""),
				"responsibilities_keywords": arrayOf(prop("string", ""), ""),
				"achievements":              arrayOf(prop("string", ""), ""),
			}), ""),
			"education": arrayOf(object(map[string]any{
				"degree":      prop("string", ""),
				"field":       prop("string", ""),
				"institution": prop("string", ""),
				"year":        prop("integer", ""),
			}), ""),
			"profile_keywords_line": prop("string", "Comma-separated profile keywords"),
			"ats_boost_line":        prop("string", "Comma-separated ATS keywords"),
			"domain_tags":           arrayOf(prop("string", ""), ""),
		}, "name"),
	}
}

// complianceSchema declares the compliance-prompt parse function.
func complianceSchema() functionSchema {
	return functionSchema{
		Name:        "record_compliance_requirements",
		Description: "Record the structured compliance requirements extracted from an HR prompt.",
		Parameters: object(map[string]any{
			"structured": map[string]any{
				"type": "object",
				"additionalProperties": object(map[string]any{
					"type":      prop("string", "experience|hard_skills|education|location"),
					"specified": prop("boolean", "Whether HR actually specified this field"),
					"min_years": prop("number", "Minimum years for experience requirements"),
					"skills":    arrayOf(prop("string", ""), "Required skills for hard_skills"),
					"degree":    prop("string", "Required degree keyword for education"),
					"location":  prop("string", "Required location for location requirements"),
				}, "type", "specified"),
				"description": "Field name to requirement spec",
			},
		}, "structured"),
	}
}

// rerankSchema declares the batch rerank function. The allowed compliance
// field names are injected into the requirements_met/missing descriptions
// so the model cannot claim fields HR never specified.
func rerankSchema(allowedFields []string) functionSchema {
	allowed := "none"
	if len(allowedFields) > 0 {
		allowed = strings.Join(allowedFields, ", ")
	}
	fieldDesc := fmt.Sprintf("Subset of exactly these field names: %s", allowed)
	return functionSchema{
		Name:        "record_ranked_candidates",
		Description: "Record the refined ranking for every candidate in the batch.",
		Parameters: object(map[string]any{
			"candidates": arrayOf(object(map[string]any{
				"candidate_id":         prop("string", "Echo the input candidate id unchanged"),
				"re_rank_score":        prop("number", "Refined score in [0,1]"),
				"meets_requirements":   prop("boolean", ""),
				"requirements_met":     arrayOf(prop("string", ""), fieldDesc),
				"requirements_missing": arrayOf(prop("string", ""), fieldDesc),
				"compliance_report":    prop("string", "One-sentence compliance summary"),
			}, "candidate_id", "re_rank_score"), "One entry per input candidate"),
		}, "candidates"),
	}
}
