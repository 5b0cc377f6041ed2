package usecase

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/progress"
	"github.com/fairyhunter13/resume-match-pipeline/internal/scoring"
)

// Ranking runs the rank-batch jobs: cohort normalisation over all persisted
// scores, batched LLM refinement, and order-independent aggregation.
// Candidates failing hard compliance stay in the batches; their composite
// already carries the penalty and the LLM sees the compliance record.
type Ranking struct {
	backend domain.Backend
	ai      domain.AIGateway
}

// NewRanking wires the ranking usecase.
func NewRanking(backend domain.Backend, ai domain.AIGateway) *Ranking {
	return &Ranking{backend: backend, ai: ai}
}

// RankBatchInput is the rank-batch task payload.
type RankBatchInput struct {
	JobID        string   `json:"jobId"`
	BatchIndex   int      `json:"batchIndex"`
	TotalBatches int      `json:"totalBatches"`
	ResumeIDs    []string `json:"resumeIds"`
	Criteria     string   `json:"rankingCriteria,omitempty"`
}

// PrepareBatches reads the cohort, orders it by normalised final score, and
// chunks it into ceil(N/30) batches. Called by whoever enqueues ranking.
func (u *Ranking) PrepareBatches(ctx domain.Context, jobID, criteria string) ([]RankBatchInput, error) {
	cohort, err := u.normalizedCohort(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(cohort) == 0 {
		return nil, nil
	}

	total := (len(cohort) + domain.RerankBatchSize - 1) / domain.RerankBatchSize
	batches := make([]RankBatchInput, 0, total)
	for i := 0; i < len(cohort); i += domain.RerankBatchSize {
		end := i + domain.RerankBatchSize
		if end > len(cohort) {
			end = len(cohort)
		}
		ids := make([]string, 0, end-i)
		for _, c := range cohort[i:end] {
			ids = append(ids, c.rec.ResumeID)
		}
		batches = append(batches, RankBatchInput{
			JobID:        jobID,
			BatchIndex:   len(batches),
			TotalBatches: total,
			ResumeIDs:    ids,
			Criteria:     criteria,
		})
	}
	return batches, nil
}

// RankBatch refines one batch and appends the rerank fields to each score
// record. Batches are independent; out-of-order completion is fine.
func (u *Ranking) RankBatch(ctx domain.Context, in RankBatchInput, tr *progress.Tracker) error {
	if len(in.ResumeIDs) > domain.RerankBatchSize {
		return domain.Fatal("rank_batch", fmt.Errorf("%w: batch of %d exceeds %d",
			domain.ErrInvalidArgument, len(in.ResumeIDs), domain.RerankBatchSize))
	}
	tr.Update(ctx, 10, "fetch_cohort", "")
	cohort, err := u.normalizedCohort(ctx, in.JobID)
	if err != nil {
		tr.Failed(ctx, "fetch_cohort", err)
		return domain.Fatal("fetch_cohort", err)
	}
	byResume := make(map[string]scoredCandidate, len(cohort))
	for _, c := range cohort {
		byResume[c.rec.ResumeID] = c
	}

	job, err := u.backend.GetJob(ctx, in.JobID)
	if err != nil {
		tr.Failed(ctx, "fetch_job", err)
		return domain.Fatal("fetch_job", err)
	}
	allowed := []string{}
	criteria := in.Criteria
	if job.Analysis != nil {
		allowed = job.Analysis.FilterRequirements.AllowedFields()
		if criteria == "" {
			criteria = job.Analysis.RoleTitle + ": " + job.Analysis.Summary
		}
	}

	tr.Update(ctx, 30, "build_summaries", "")
	summaries := make([]domain.CandidateSummary, 0, len(in.ResumeIDs))
	records := make([]domain.ScoreRecord, 0, len(in.ResumeIDs))
	for _, id := range in.ResumeIDs {
		c, ok := byResume[id]
		if !ok {
			// pipeline failed for this resume; ranking proceeds without it
			slog.Warn("rank batch references resume without score",
				slog.String("job_id", in.JobID), slog.String("resume_id", id))
			continue
		}
		summaries = append(summaries, u.summarize(ctx, c))
		records = append(records, c.rec)
	}
	if len(summaries) == 0 {
		tr.Complete(ctx, "no scored candidates in batch")
		return nil
	}

	tr.Update(ctx, 50, "rerank", fmt.Sprintf("batch %d/%d, %d candidates",
		in.BatchIndex+1, in.TotalBatches, len(summaries)))
	ranked, err := u.ai.RerankBatch(ctx, domain.RerankInput{
		Candidates:    summaries,
		Requirements:  criteria,
		AllowedFields: allowed,
	})
	if err != nil {
		tr.Failed(ctx, "rerank", err)
		return domain.Fatal("rerank", err)
	}

	tr.Update(ctx, 80, "persist_ranking", "")
	byCandidate := make(map[string]domain.RankedCandidate, len(ranked))
	for _, rc := range ranked {
		byCandidate[rc.CandidateID] = rc
	}
	for _, rec := range records {
		rc, ok := byCandidate[rec.CandidateID]
		if !ok {
			continue
		}
		rec.ReRankScore = &rc.ReRankScore
		rec.MeetsRequirements = &rc.MeetsRequirements
		rec.RequirementsMet = rc.RequirementsMet
		rec.RequirementsMissing = rc.RequirementsMissing
		rec.ComplianceReport = rc.ComplianceReport
		if err := u.backend.SubmitScore(ctx, rec); err != nil {
			tr.Failed(ctx, "persist_ranking", err)
			return domain.Fatal("persist_ranking", err)
		}
	}
	tr.Complete(ctx, fmt.Sprintf("batch %d/%d ranked", in.BatchIndex+1, in.TotalBatches))
	return nil
}

// FinalRanking concatenates all batch outputs: records ordered by rerank
// score where present, composite score otherwise.
func (u *Ranking) FinalRanking(ctx domain.Context, jobID string) ([]domain.ScoreRecord, error) {
	recs, err := u.backend.ListScores(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("op=ranking.FinalRanking: %w", err)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return effectiveScore(recs[i]) > effectiveScore(recs[j])
	})
	return recs, nil
}

type scoredCandidate struct {
	rec          domain.ScoreRecord
	normalized   float64
	normKeyword  float64
	normSemantic float64
}

// normalizedCohort lists the job's scores with cohort min-max normalisation
// applied to the composite, keyword and semantic components. Every batch
// reads the full cohort, so independent batches agree on the normalised
// values. Persisted records keep the raw scores.
func (u *Ranking) normalizedCohort(ctx domain.Context, jobID string) ([]scoredCandidate, error) {
	recs, err := u.backend.ListScores(ctx, jobID)
	if err != nil {
		return nil, err
	}
	finals := make([]float64, len(recs))
	keywords := make([]float64, len(recs))
	semantics := make([]float64, len(recs))
	for i, r := range recs {
		finals[i] = r.FinalScore
		keywords[i] = r.KeywordScore
		semantics[i] = r.SemanticScore
	}
	normF := scoring.MinMaxNormalize(finals)
	normK := scoring.MinMaxNormalize(keywords)
	normS := scoring.MinMaxNormalize(semantics)

	cohort := make([]scoredCandidate, len(recs))
	for i, r := range recs {
		cohort[i] = scoredCandidate{
			rec:          r,
			normalized:   normF[i],
			normKeyword:  normK[i],
			normSemantic: normS[i],
		}
	}
	sort.SliceStable(cohort, func(i, j int) bool {
		return cohort[i].normalized > cohort[j].normalized
	})
	return cohort, nil
}

// summarize builds the abbreviated candidate view for the rerank prompt.
func (u *Ranking) summarize(ctx domain.Context, c scoredCandidate) domain.CandidateSummary {
	s := domain.CandidateSummary{
		CandidateID:   c.rec.CandidateID,
		Name:          c.rec.CandidateName,
		ProjectScore:  round3(c.rec.ProjectScore),
		KeywordScore:  round3(c.normKeyword),
		SemanticScore: round3(c.normSemantic),
		FinalScore:    round3(c.normalized),
		Compliance: &domain.HardRequirementsResult{
			MeetsAll:        c.rec.HardRequirementsMet,
			ComplianceScore: c.rec.Breakdown["hard_requirements"],
		},
	}

	resume, err := u.backend.GetResume(ctx, c.rec.ResumeID)
	if err != nil || resume.Parsed == nil {
		return s
	}
	p := resume.Parsed
	s.Experience = p.YearsExperience
	s.Location = p.Location
	s.Role = p.CurrentRole
	for _, toks := range p.CanonicalSkills {
		s.Skills = append(s.Skills, toks...)
	}
	sort.Strings(s.Skills)
	if len(s.Skills) > 10 {
		s.Skills = s.Skills[:10]
	}
	for i, prj := range p.Projects {
		if i == 3 {
			break
		}
		s.Projects = append(s.Projects, [3]string{
			prj.Name,
			joinMax(prj.PrimarySkills, 5),
			fmt.Sprintf("%.2f", prj.Metrics.TechnicalDepth),
		})
	}
	return s
}

func effectiveScore(r domain.ScoreRecord) float64 {
	if r.ReRankScore != nil {
		return *r.ReRankScore
	}
	return r.FinalScore
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}

func joinMax(parts []string, n int) string {
	if len(parts) > n {
		parts = parts[:n]
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
