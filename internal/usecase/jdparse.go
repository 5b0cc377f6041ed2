package usecase

import (
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/progress"
)

// JDParse runs the parse-jd job: one structured analysis, two compliance
// blocks, and the six JD section embeddings, all written back to the
// backend. Parsing is idempotent per JD content hash.
type JDParse struct {
	backend domain.Backend
	ai      domain.AIGateway
}

// NewJDParse wires the JD parse usecase.
func NewJDParse(backend domain.Backend, ai domain.AIGateway) *JDParse {
	return &JDParse{backend: backend, ai: ai}
}

// ParseJDInput is the parse-jd task payload. The compliance prompts come
// from HR at upload time and ride along with the job.
type ParseJDInput struct {
	JobID           string `json:"jobId"`
	MandatoryPrompt string `json:"mandatoryPrompt,omitempty"`
	SoftPrompt      string `json:"softPrompt,omitempty"`
}

// Process parses one JD. A job whose stored content hash matches the
// current JD text keeps its existing analysis and embeddings.
func (u *JDParse) Process(ctx domain.Context, in ParseJDInput, tr *progress.Tracker) error {
	tr.Update(ctx, 5, "fetch_job", "")
	job, err := u.backend.GetJob(ctx, in.JobID)
	if err != nil {
		return u.fail(ctx, in.JobID, tr, "fetch_job", err)
	}

	hash := domain.ContentHash(job.JDText)
	if job.Analysis != nil && job.Embeddings != nil && job.JDContentHash == hash {
		slog.Info("jd analysis up to date, skipping parse",
			slog.String("job_id", in.JobID), slog.String("content_hash", hash[:12]))
		tr.Complete(ctx, "jd analysis cached")
		return nil
	}

	tr.Update(ctx, 20, "parse_jd", "")
	analysis, err := u.ai.ParseJD(ctx, job.JDText)
	if err != nil {
		return u.fail(ctx, in.JobID, tr, "parse_jd", domain.Fatal("parse_jd", err))
	}

	tr.Update(ctx, 45, "parse_compliance", "")
	analysis.FilterRequirements, err = u.parseCompliance(ctx, in)
	if err != nil {
		return u.fail(ctx, in.JobID, tr, "parse_compliance", domain.Fatal("parse_compliance", err))
	}

	tr.Update(ctx, 60, "persist_analysis", "")
	if err := u.backend.UpdateJDParsed(ctx, in.JobID, analysis); err != nil {
		return u.fail(ctx, in.JobID, tr, "persist_analysis", domain.Fatal("persist_analysis", err))
	}
	if err := u.backend.UpdateJDCompliance(ctx, in.JobID, analysis.FilterRequirements); err != nil {
		return u.fail(ctx, in.JobID, tr, "persist_analysis", domain.Fatal("persist_analysis", err))
	}

	tr.Update(ctx, 75, "embed_jd", "")
	job.Analysis = &analysis
	emb, err := embedSections(ctx, u.ai, jdSectionTexts(job))
	if err != nil {
		return u.fail(ctx, in.JobID, tr, "embed_jd", domain.Fatal("embed_jd", err))
	}
	if err := u.backend.UpdateJDEmbeddings(ctx, in.JobID, *emb); err != nil {
		return u.fail(ctx, in.JobID, tr, "embed_jd", domain.Fatal("embed_jd", err))
	}

	tr.Update(ctx, 95, "finalize", "")
	if err := u.backend.UpdateJDStatus(ctx, in.JobID, domain.JobCompleted); err != nil {
		return u.fail(ctx, in.JobID, tr, "finalize", domain.Fatal("finalize", err))
	}
	tr.Complete(ctx, fmt.Sprintf("jd parsed: %s", analysis.RoleTitle))
	return nil
}

func (u *JDParse) parseCompliance(ctx domain.Context, in ParseJDInput) (domain.FilterRequirements, error) {
	var fr domain.FilterRequirements
	var err error
	fr.Mandatory, err = u.ai.ParseCompliance(ctx, in.MandatoryPrompt)
	if err != nil {
		return fr, err
	}
	fr.Soft, err = u.ai.ParseCompliance(ctx, in.SoftPrompt)
	return fr, err
}

func (u *JDParse) fail(ctx domain.Context, jobID string, tr *progress.Tracker, stage string, err error) error {
	if sErr := u.backend.UpdateJDStatus(ctx, jobID, domain.JobFailed); sErr != nil {
		slog.Warn("failed to mark job failed", slog.String("job_id", jobID), slog.Any("error", sErr))
	}
	tr.Failed(ctx, stage, err)
	return err
}
