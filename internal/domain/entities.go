// Package domain holds the core entities and ports of the resume-to-job
// matching pipeline. It has no dependencies on adapters or transports.
package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Context is an alias so adapters and usecases pass context.Context through
// without the domain importing transport concerns.
type Context = context.Context

// Section names for the six embedding sections of a JD and a resume.
const (
	SectionProfile          = "profile"
	SectionSkills           = "skills"
	SectionProjects         = "projects"
	SectionResponsibilities = "responsibilities"
	SectionEducation        = "education"
	SectionOverall          = "overall"
)

// Sections lists all embedding sections in canonical order.
var Sections = []string{
	SectionProfile,
	SectionSkills,
	SectionProjects,
	SectionResponsibilities,
	SectionEducation,
	SectionOverall,
}

// SectionEmbeddings holds one L2-normalised embedding matrix per section,
// one row per sentence.
type SectionEmbeddings struct {
	Profile          [][]float32 `json:"profile"`
	Skills           [][]float32 `json:"skills"`
	Projects         [][]float32 `json:"projects"`
	Responsibilities [][]float32 `json:"responsibilities"`
	Education        [][]float32 `json:"education"`
	Overall          [][]float32 `json:"overall"`
}

// Section returns the matrix for a named section; nil for unknown names.
func (e *SectionEmbeddings) Section(name string) [][]float32 {
	if e == nil {
		return nil
	}
	switch name {
	case SectionProfile:
		return e.Profile
	case SectionSkills:
		return e.Skills
	case SectionProjects:
		return e.Projects
	case SectionResponsibilities:
		return e.Responsibilities
	case SectionEducation:
		return e.Education
	case SectionOverall:
		return e.Overall
	}
	return nil
}

// SetSection stores a matrix under a named section.
func (e *SectionEmbeddings) SetSection(name string, m [][]float32) {
	switch name {
	case SectionProfile:
		e.Profile = m
	case SectionSkills:
		e.Skills = m
	case SectionProjects:
		e.Projects = m
	case SectionResponsibilities:
		e.Responsibilities = m
	case SectionEducation:
		e.Education = m
	case SectionOverall:
		e.Overall = m
	}
}

// RequirementKind enumerates the recognised compliance requirement kinds.
// Unknown kinds fall through as passing; new kinds are added explicitly.
type RequirementKind string

const (
	RequirementExperience RequirementKind = "experience"
	RequirementHardSkills RequirementKind = "hard_skills"
	RequirementEducation  RequirementKind = "education"
	RequirementLocation   RequirementKind = "location"
)

// RequirementSpec is one structured compliance field parsed from the HR
// prompt. Only the constraint matching Kind is populated.
type RequirementSpec struct {
	Kind      RequirementKind `json:"type"`
	Specified bool            `json:"specified"`
	MinYears  float64         `json:"min_years,omitempty"`
	Skills    []string        `json:"skills,omitempty"`
	Degree    string          `json:"degree,omitempty"`
	Location  string          `json:"location,omitempty"`
}

// ComplianceBlock is one compliance prompt (mandatory or soft) with its
// structured field map.
type ComplianceBlock struct {
	RawPrompt  string                     `json:"raw_prompt"`
	Structured map[string]RequirementSpec `json:"structured"`
}

// SpecifiedFields returns the names of fields whose specified flag is set,
// in sorted-insertion order of the map keys is not guaranteed; callers sort.
func (b ComplianceBlock) SpecifiedFields() []string {
	out := make([]string, 0, len(b.Structured))
	for name, spec := range b.Structured {
		if spec.Specified {
			out = append(out, name)
		}
	}
	return out
}

// FilterRequirements carries the two compliance blocks of a JD.
type FilterRequirements struct {
	Mandatory ComplianceBlock `json:"mandatory_compliances"`
	Soft      ComplianceBlock `json:"soft_compliances"`
}

// AllowedFields is the union of specified mandatory and soft field names.
// LLM rerank output is filtered against this set.
func (f FilterRequirements) AllowedFields() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, name := range append(f.Mandatory.SpecifiedFields(), f.Soft.SpecifiedFields()...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// JDAnalysis is the structured analysis of a job description produced by the
// JD parse stage. HR notes, required skills, and the JD summary are
// first-class fields; the flat prefixed-tag form exists only at the backend
// boundary.
type JDAnalysis struct {
	RoleTitle          string             `json:"role_title" validate:"required"`
	Seniority          string             `json:"seniority"`
	Summary            string             `json:"summary"`
	HRNotes            []string           `json:"hr_notes"`
	DomainTags         []string           `json:"domain_tags"`
	RequiredSkills     []string           `json:"required_skills"`
	PreferredSkills    []string           `json:"preferred_skills"`
	WeightedKeywords   map[string]float64 `json:"weighted_keywords"`
	MinExperienceYears float64            `json:"min_experience_years"`
	FilterRequirements FilterRequirements `json:"filter_requirements"`
	// ScoreWeights optionally overrides the keyword component weights.
	ScoreWeights map[string]float64 `json:"score_weights,omitempty"`
}

// JobStatus mirrors the backend's job lifecycle.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the backend's job record: the JD text plus, once parsed, its
// analysis and embeddings.
type Job struct {
	ID              string             `json:"id"`
	Status          JobStatus          `json:"status"`
	JDText          string             `json:"jd_text"`
	JDContentHash   string             `json:"jd_content_hash"`
	Analysis        *JDAnalysis        `json:"jd_analysis,omitempty"`
	Embeddings      *SectionEmbeddings `json:"jd_embedding,omitempty"`
	RankingCriteria string             `json:"ranking_criteria,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// StageStatus tracks the per-stage status fields on a resume record. Each
// advances from pending to success or failed exactly once per run.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
)

// InferredSkill is a skill the parser inferred rather than read verbatim.
type InferredSkill struct {
	Skill      string  `json:"skill"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Provenance string  `json:"provenance"`
}

// SkillProficiency pairs a skill with a proficiency level.
type SkillProficiency struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

// ProjectMetrics carries the seven project rating metrics, each in [0,1].
type ProjectMetrics struct {
	Difficulty       float64 `json:"difficulty" validate:"gte=0,lte=1"`
	Novelty          float64 `json:"novelty" validate:"gte=0,lte=1"`
	SkillRelevance   float64 `json:"skill_relevance" validate:"gte=0,lte=1"`
	Complexity       float64 `json:"complexity" validate:"gte=0,lte=1"`
	TechnicalDepth   float64 `json:"technical_depth" validate:"gte=0,lte=1"`
	DomainRelevance  float64 `json:"domain_relevance" validate:"gte=0,lte=1"`
	ExecutionQuality float64 `json:"execution_quality" validate:"gte=0,lte=1"`
}

// Project is one project on a resume.
type Project struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	TechKeywords  []string       `json:"tech_keywords"`
	PrimarySkills []string       `json:"primary_skills"`
	Metrics       ProjectMetrics `json:"metrics"`
}

// ExperienceEntry is one employment entry. Only year precision is kept for
// start and end dates.
type ExperienceEntry struct {
	Company                  string   `json:"company"`
	Title                    string   `json:"title"`
	StartYear                int      `json:"start_year"`
	EndYear                  int      `json:"end_year"` // 0 means present
	PrimaryTech              []string `json:"primary_tech"`
	ResponsibilitiesKeywords []string `json:"responsibilities_keywords"`
	Achievements             []string `json:"achievements"`
}

// EducationEntry is one education entry.
type EducationEntry struct {
	Degree      string `json:"degree"`
	Field       string `json:"field"`
	Institution string `json:"institution"`
	Year        int    `json:"year"`
}

// ParsedResume is the structured content of a resume produced by the AI
// parse stage.
type ParsedResume struct {
	Name                string              `json:"name" validate:"required"`
	Email               string              `json:"email"`
	Phone               string              `json:"phone"`
	Location            string              `json:"location"`
	CurrentRole         string              `json:"current_role"`
	YearsExperience     float64             `json:"years_experience"`
	CanonicalSkills     map[string][]string `json:"canonical_skills"`
	InferredSkills      []InferredSkill     `json:"inferred_skills" validate:"dive"`
	SkillProficiency    []SkillProficiency  `json:"skill_proficiency"`
	Projects            []Project           `json:"projects"`
	Experience          []ExperienceEntry   `json:"experience"`
	Education           []EducationEntry    `json:"education"`
	ProfileKeywordsLine string              `json:"profile_keywords_line"`
	ATSBoostLine        string              `json:"ats_boost_line"`
	DomainTags          []string            `json:"domain_tags"`
}

// DerivedYears computes years of experience from the experience entries at
// year precision, falling back to the parsed years_experience field.
func (p ParsedResume) DerivedYears(currentYear int) float64 {
	total := 0
	for _, e := range p.Experience {
		if e.StartYear <= 0 {
			continue
		}
		end := e.EndYear
		if end <= 0 {
			end = currentYear
		}
		if end >= e.StartYear {
			total += end - e.StartYear
		}
	}
	if total == 0 {
		return p.YearsExperience
	}
	return float64(total)
}

// Resume is the backend's resume record for one candidate.
type Resume struct {
	ID               string             `json:"id"`
	CandidateID      string             `json:"candidate_id"`
	Name             string             `json:"name"`
	FileName         string             `json:"file_name"`
	GroupID          string             `json:"group_id,omitempty"`
	ContentHash      string             `json:"content_hash,omitempty"`
	ExtractionStatus StageStatus        `json:"extraction_status"`
	ParsingStatus    StageStatus        `json:"parsing_status"`
	EmbeddingStatus  StageStatus        `json:"embedding_status"`
	RawText          string             `json:"raw_text,omitempty"`
	Parsed           *ParsedResume      `json:"parsed_content,omitempty"`
	Embeddings       *SectionEmbeddings `json:"resume_embedding,omitempty"`
}

// ResumePatch carries partial resume fields for PUT /updates/resume/{id}.
// Nil pointers are omitted from the request body.
type ResumePatch struct {
	ExtractionStatus *StageStatus       `json:"extraction_status,omitempty"`
	ParsingStatus    *StageStatus       `json:"parsing_status,omitempty"`
	EmbeddingStatus  *StageStatus       `json:"embedding_status,omitempty"`
	RawText          *string            `json:"raw_text,omitempty"`
	ContentHash      *string            `json:"content_hash,omitempty"`
	Parsed           *ParsedResume      `json:"parsed_content,omitempty"`
	Embeddings       *SectionEmbeddings `json:"resume_embedding,omitempty"`
}

// CandidateID derives a deterministic candidate identifier from contact
// details so the same person uploaded twice maps to one candidate.
func CandidateID(email, phone, name string) string {
	norm := strings.ToLower(strings.TrimSpace(email)) + "|" +
		strings.ToLower(strings.TrimSpace(phone)) + "|" +
		strings.ToLower(strings.TrimSpace(name))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:16])
}

// ContentHash hashes arbitrary content for cache keys and idempotence
// checks.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HardRequirementsResult is the outcome of the hard-requirements check.
type HardRequirementsResult struct {
	MeetsAll        bool     `json:"meets_all"`
	ComplianceScore float64  `json:"compliance_score"`
	Met             []string `json:"met"`
	Missing         []string `json:"missing"`
}

// RankingTier labels a composite score band.
type RankingTier string

const (
	TierExcellent    RankingTier = "Excellent"
	TierGood         RankingTier = "Good"
	TierAverage      RankingTier = "Average"
	TierBelowAverage RankingTier = "Below Average"
	TierPoor         RankingTier = "Poor"
)

// ScoreRecord is one persisted score per (job, resume) pair. All scores lie
// in [0,1].
type ScoreRecord struct {
	JobID               string             `json:"job_id"`
	ResumeID            string             `json:"resume_id"`
	CandidateID         string             `json:"candidate_id"`
	CandidateName       string             `json:"candidate_name"`
	KeywordScore        float64            `json:"keyword_score"`
	SemanticScore       float64            `json:"semantic_score"`
	ProjectScore        float64            `json:"project_score"`
	HardRequirementsMet bool               `json:"hard_requirements_met"`
	FinalScore          float64            `json:"final_score"`
	Breakdown           map[string]float64 `json:"score_breakdown"`
	RankingTier         RankingTier        `json:"ranking_tier"`
	// DefaultedComponents records which sub-scores fell back to their
	// typed zero result after a skippable stage failure.
	DefaultedComponents []string `json:"defaulted_components,omitempty"`
	// Rerank fields are appended by the ranking stage and absent before it.
	ReRankScore         *float64  `json:"re_rank_score,omitempty"`
	MeetsRequirements   *bool     `json:"meets_requirements,omitempty"`
	RequirementsMet     []string  `json:"requirements_met,omitempty"`
	RequirementsMissing []string  `json:"requirements_missing,omitempty"`
	ComplianceReport    string    `json:"compliance_report,omitempty"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// RankedCandidate is one LLM-refined ranking entry.
type RankedCandidate struct {
	CandidateID         string   `json:"candidate_id" validate:"required"`
	ReRankScore         float64  `json:"re_rank_score" validate:"gte=0,lte=1"`
	MeetsRequirements   bool     `json:"meets_requirements"`
	RequirementsMet     []string `json:"requirements_met"`
	RequirementsMissing []string `json:"requirements_missing"`
	ComplianceReport    string   `json:"compliance_report,omitempty"`
}

// CandidateSummary is the abbreviated per-candidate view sent to the rerank
// LLM call: identity, compact scores, and a programmatic compliance record.
type CandidateSummary struct {
	CandidateID   string                  `json:"id"`
	Name          string                  `json:"name"`
	ProjectScore  float64                 `json:"p"`
	KeywordScore  float64                 `json:"k"`
	SemanticScore float64                 `json:"s"`
	FinalScore    float64                 `json:"f"`
	Experience    float64                 `json:"experience_years"`
	Location      string                  `json:"location,omitempty"`
	Role          string                  `json:"role,omitempty"`
	Skills        []string                `json:"skills,omitempty"`   // at most 10
	Projects      [][3]string             `json:"projects,omitempty"` // at most 3 (name, skills, depth)
	Compliance    *HardRequirementsResult `json:"compliance,omitempty"`
}

// RerankBatchSize is the maximum number of candidates per rerank call.
const RerankBatchSize = 30

// HardFailPenalty multiplies the composite score of a candidate that fails
// hard compliance.
const HardFailPenalty = 0.3
