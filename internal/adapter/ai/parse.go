package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const jdSystemPrompt = `You are an expert technical recruiter. Analyse the job description and record
a complete structured analysis. Skills must be lowercase canonical names
(e.g. "golang", "postgresql"). Weighted keywords reflect how central each
keyword is to the role, in [0,1]. Use 0 for min_experience_years when the JD
does not state one.`

const resumeSystemPrompt = `You are an expert resume analyst. Record the complete structured content of
the candidate resume. Rate each project's seven metrics in [0,1] relative to
the role context provided. Infer skills only with clear supporting evidence
and record the provenance. Use year precision for employment dates; end_year
0 means the position is current.`

const complianceSystemPrompt = `You extract hiring requirements from an HR prompt. Record every field HR
actually specified with specified=true; record recognisable but unspecified
fields with specified=false. Field types are limited to experience,
hard_skills, education and location.`

// ParseJD analyses a job description into its structured form.
func (c *Client) ParseJD(ctx domain.Context, text string) (domain.JDAnalysis, error) {
	var out domain.JDAnalysis
	user := c.truncatePrompt(text)
	raw, err := c.chatFunction(ctx, jdSchema(), jdSystemPrompt, user)
	if err != nil {
		return out, fmt.Errorf("op=ai.ParseJD: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("op=ai.ParseJD: %w: %v", domain.ErrParseFailure, err)
	}
	if err := validate.Struct(out); err != nil {
		// best-effort data is still usable downstream
		slog.Warn("jd analysis failed validation",
			slog.String("role_title", out.RoleTitle), slog.Any("error", err))
	}
	normalizeSkills(out.RequiredSkills)
	normalizeSkills(out.PreferredSkills)
	return out, nil
}

// ParseResume parses raw resume text, with the JD role context steering the
// project metric ratings.
func (c *Client) ParseResume(ctx domain.Context, text, jdContext string) (domain.ParsedResume, error) {
	var out domain.ParsedResume
	user := c.truncatePrompt(text)
	if jdContext != "" {
		user = "Role context:\n" + jdContext + "\n\nResume:\n" + user
	}
	raw, err := c.chatFunction(ctx, resumeSchema(), resumeSystemPrompt, user)
	if err != nil {
		return out, fmt.Errorf("op=ai.ParseResume: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("op=ai.ParseResume: %w: %v", domain.ErrParseFailure, err)
	}
	if err := validate.Struct(out); err != nil {
		slog.Warn("parsed resume failed validation",
			slog.String("name", out.Name), slog.Any("error", err))
	}
	for _, toks := range out.CanonicalSkills {
		normalizeSkills(toks)
	}
	return out, nil
}

// ParseCompliance converts one raw HR compliance prompt into its structured
// field map. An empty prompt returns an empty block without an API call.
func (c *Client) ParseCompliance(ctx domain.Context, rawPrompt string) (domain.ComplianceBlock, error) {
	block := domain.ComplianceBlock{RawPrompt: rawPrompt, Structured: map[string]domain.RequirementSpec{}}
	if strings.TrimSpace(rawPrompt) == "" {
		return block, nil
	}
	raw, err := c.chatFunction(ctx, complianceSchema(), complianceSystemPrompt, rawPrompt)
	if err != nil {
		return block, fmt.Errorf("op=ai.ParseCompliance: %w", err)
	}
	var decoded struct {
		Structured map[string]domain.RequirementSpec `json:"structured"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return block, fmt.Errorf("op=ai.ParseCompliance: %w: %v", domain.ErrParseFailure, err)
	}
	if decoded.Structured != nil {
		block.Structured = decoded.Structured
	}
	return block, nil
}

func normalizeSkills(skills []string) {
	for i, s := range skills {
		skills[i] = strings.ToLower(strings.TrimSpace(s))
	}
}
