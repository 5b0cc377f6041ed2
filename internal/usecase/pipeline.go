package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
	"github.com/fairyhunter13/resume-match-pipeline/internal/progress"
	"github.com/fairyhunter13/resume-match-pipeline/internal/scoring"
	"github.com/fairyhunter13/resume-match-pipeline/pkg/textx"
)

// Stage names, in pipeline order.
const (
	StageFetchResume = "fetch_resume"
	StageFetchJob    = "fetch_job"
	StageExtract     = "extract_text"
	StageParse       = "ai_parse"
	StageEmbed       = "embed"
	StageHardReq     = "hard_requirements"
	StageProject     = "project_score"
	StageKeyword     = "keyword_score"
	StageSemantic    = "semantic_score"
	StageComposite   = "composite"
	StagePersist     = "persist"
)

// defaultStageTimeout bounds the wall clock of a single externally-bound
// stage, including its retries, so a hung upstream cannot stall the worker
// slot forever.
const defaultStageTimeout = 5 * time.Minute

// ResumePipeline scores one resume against one job through the fixed stage
// sequence. Fatal stages end the run; skippable stages fall back to typed
// zero results recorded in DefaultedComponents.
type ResumePipeline struct {
	backend      domain.Backend
	ai           domain.AIGateway
	extractor    domain.TextExtractor
	uploadsRoot  string
	stageTimeout time.Duration
	now          func() time.Time
}

// NewResumePipeline wires the per-resume pipeline.
func NewResumePipeline(backend domain.Backend, ai domain.AIGateway, extractor domain.TextExtractor, uploadsRoot string) *ResumePipeline {
	return &ResumePipeline{
		backend:      backend,
		ai:           ai,
		extractor:    extractor,
		uploadsRoot:  uploadsRoot,
		stageTimeout: defaultStageTimeout,
		now:          time.Now,
	}
}

// ProcessResumeInput is the process-resume task payload.
type ProcessResumeInput struct {
	JobID    string `json:"jobId"`
	ResumeID string `json:"resumeId"`
	GroupID  string `json:"groupId,omitempty"`
	FileName string `json:"fileName"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
}

// Process runs the full stage sequence for one resume. Stages already
// marked success on the resume record are skipped, so a retried job resumes
// where it stopped.
func (p *ResumePipeline) Process(ctx domain.Context, in ProcessResumeInput, tr *progress.Tracker) error {
	tr.Update(ctx, 5, StageFetchResume, "")
	resume, err := p.backend.GetResume(ctx, in.ResumeID)
	if err != nil {
		return p.fatal(ctx, tr, StageFetchResume, err)
	}
	tr.Update(ctx, 10, StageFetchJob, "")
	job, err := p.backend.GetJob(ctx, in.JobID)
	if err != nil {
		return p.fatal(ctx, tr, StageFetchJob, err)
	}
	if job.Analysis == nil {
		return p.fatal(ctx, tr, StageFetchJob,
			fmt.Errorf("%w: job %s has no jd analysis", domain.ErrInvalidArgument, in.JobID))
	}
	tr.Update(ctx, 12, StageFetchJob, "job loaded")

	rawText, err := p.extract(ctx, tr, in, &resume)
	if err != nil {
		return p.fatal(ctx, tr, StageExtract, err)
	}

	parsed, err := p.parse(ctx, tr, in, &resume, rawText, *job.Analysis)
	if err != nil {
		return p.fatal(ctx, tr, StageParse, err)
	}

	defaulted := []string{}
	emb := p.embed(ctx, tr, in, &resume, parsed, &defaulted)

	years := parsed.DerivedYears(p.now().Year())

	tr.Update(ctx, 60, StageHardReq, "")
	hard := scoring.CheckHardRequirements(job.Analysis.FilterRequirements.Mandatory, parsed, years)
	tr.Update(ctx, 65, StageHardReq, fmt.Sprintf("met %d/%d", len(hard.Met), len(hard.Met)+len(hard.Missing)))

	projectScore := scoring.ProjectAggregate(parsed.Projects)
	tr.Update(ctx, 70, StageProject, "")

	keyword := scoring.CompositeKeywordScore(*job.Analysis, parsed)
	tr.Update(ctx, 75, StageKeyword, "")

	semantic := scoring.SemanticScore(job.Embeddings, emb)
	tr.Update(ctx, 80, StageSemantic, "")

	tr.Update(ctx, 85, StageComposite, "")
	result := scoring.CompositeScore(scoring.CompositeInput{
		Keyword:  keyword.Total,
		Semantic: semantic.Total,
		Project:  projectScore,
		Hard:     hard,
		Years:    years,
		JD:       *job.Analysis,
		Resume:   parsed,
	})
	tr.Update(ctx, 90, StageComposite, fmt.Sprintf("final %.3f (%s)", result.FinalScore, result.Tier))

	rec := domain.ScoreRecord{
		JobID:               in.JobID,
		ResumeID:            in.ResumeID,
		CandidateID:         domain.CandidateID(parsed.Email, parsed.Phone, parsed.Name),
		CandidateName:       parsed.Name,
		KeywordScore:        keyword.Total,
		SemanticScore:       semantic.Total,
		ProjectScore:        projectScore,
		HardRequirementsMet: hard.MeetsAll,
		FinalScore:          result.FinalScore,
		Breakdown:           result.Breakdown,
		RankingTier:         result.Tier,
		DefaultedComponents: defaulted,
	}
	tr.Update(ctx, 95, StagePersist, "")
	if err := p.backend.SubmitScore(ctx, rec); err != nil {
		return p.fatal(ctx, tr, StagePersist, err)
	}
	observability.ObserveFinalScore(result.FinalScore)
	tr.Complete(ctx, fmt.Sprintf("scored %.3f (%s)", result.FinalScore, result.Tier),
		progress.WithMetadata(map[string]any{
			"final_score":  result.FinalScore,
			"ranking_tier": string(result.Tier),
			"defaulted":    defaulted,
		}))
	return nil
}

// extract runs the extract_text stage, honouring a previous success.
func (p *ResumePipeline) extract(ctx domain.Context, tr *progress.Tracker, in ProcessResumeInput, resume *domain.Resume) (string, error) {
	if resume.ExtractionStatus == domain.StageSuccess && resume.RawText != "" {
		tr.Update(ctx, 20, StageExtract, "cached extraction reused")
		return resume.RawText, nil
	}
	tr.Update(ctx, 15, StageExtract, "")

	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	text, err := p.extractor.ExtractPath(sctx, in.FileName, p.resumePath(in))
	if err == nil && !textx.LooksLikeResume(text) {
		err = fmt.Errorf("%w: extracted text does not look like a resume", domain.ErrParseFailure)
	}
	if err != nil {
		p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{ExtractionStatus: stage(domain.StageFailed)})
		return "", err
	}

	hash := domain.ContentHash(text)
	p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{
		ExtractionStatus: stage(domain.StageSuccess),
		RawText:          &text,
		ContentHash:      &hash,
	})
	tr.Update(ctx, 20, StageExtract, fmt.Sprintf("%d chars", len(text)))
	return text, nil
}

// parse runs the ai_parse stage, honouring a previous success.
func (p *ResumePipeline) parse(ctx domain.Context, tr *progress.Tracker, in ProcessResumeInput, resume *domain.Resume, rawText string, jd domain.JDAnalysis) (domain.ParsedResume, error) {
	if resume.ParsingStatus == domain.StageSuccess && resume.Parsed != nil {
		tr.Update(ctx, 40, StageParse, "cached parse reused")
		return *resume.Parsed, nil
	}
	tr.Update(ctx, 25, StageParse, "")

	jdContext := jd.RoleTitle
	if jd.Summary != "" {
		jdContext += ": " + jd.Summary
	}
	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	parsed, err := p.ai.ParseResume(sctx, rawText, jdContext)
	if err != nil {
		p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{ParsingStatus: stage(domain.StageFailed)})
		return domain.ParsedResume{}, err
	}

	p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{
		ParsingStatus: stage(domain.StageSuccess),
		Parsed:        &parsed,
	})
	tr.Update(ctx, 40, StageParse, parsed.Name)
	return parsed, nil
}

// embed runs the skippable embed stage. On failure the pipeline scores with
// empty matrices and records the semantic component as defaulted.
func (p *ResumePipeline) embed(ctx domain.Context, tr *progress.Tracker, in ProcessResumeInput, resume *domain.Resume, parsed domain.ParsedResume, defaulted *[]string) *domain.SectionEmbeddings {
	if resume.EmbeddingStatus == domain.StageSuccess && resume.Embeddings != nil {
		tr.Update(ctx, 55, StageEmbed, "cached embeddings reused")
		return resume.Embeddings
	}
	tr.Update(ctx, 45, StageEmbed, "")

	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	emb, err := embedSections(sctx, p.ai, resumeSectionTexts(parsed))
	if err != nil {
		observability.StageFailuresTotal.WithLabelValues(StageEmbed, "skipped").Inc()
		slog.Warn("embed stage failed, scoring with empty matrices",
			slog.String("resume_id", in.ResumeID), slog.Any("error", err))
		p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{EmbeddingStatus: stage(domain.StageFailed)})
		*defaulted = append(*defaulted, StageSemantic)
		tr.Update(ctx, 55, StageEmbed, "embedding skipped")
		return &domain.SectionEmbeddings{}
	}

	p.patchStatus(ctx, in.ResumeID, domain.ResumePatch{
		EmbeddingStatus: stage(domain.StageSuccess),
		Embeddings:      emb,
	})
	tr.Update(ctx, 55, StageEmbed, "")
	return emb
}

func (p *ResumePipeline) resumePath(in ProcessResumeInput) string {
	if in.GroupID != "" {
		return filepath.Join(p.uploadsRoot, in.GroupID, "resumes", in.FileName)
	}
	return filepath.Join(p.uploadsRoot, "resumes", in.FileName)
}

// patchStatus persists a partial resume update; failures are logged, never
// fatal, because the score record is the source of truth.
func (p *ResumePipeline) patchStatus(ctx domain.Context, resumeID string, patch domain.ResumePatch) {
	if err := p.backend.UpdateResume(ctx, resumeID, patch); err != nil {
		slog.Warn("resume status update failed",
			slog.String("resume_id", resumeID), slog.Any("error", err))
	}
}

func (p *ResumePipeline) fatal(ctx domain.Context, tr *progress.Tracker, stageName string, err error) error {
	observability.StageFailuresTotal.WithLabelValues(stageName, "fatal").Inc()
	ferr := domain.Fatal(stageName, err)
	tr.Failed(ctx, stageName, ferr)
	return ferr
}

func stage(s domain.StageStatus) *domain.StageStatus { return &s }
