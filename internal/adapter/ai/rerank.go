package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

const rerankSystemPrompt = `You are a hiring committee reviewer. Refine the ranking of the candidate
batch against the stated requirements. Judge compliance only on fields HR
actually specified. Echo every candidate id exactly once with a refined score
in [0,1]; programmatic scores are a strong prior, adjust only with evidence
from the summaries.`

// RerankBatch refines one batch of at most RerankBatchSize candidates. The
// returned slice has exactly one entry per input candidate; claimed
// compliance fields outside the allowed set are dropped.
func (c *Client) RerankBatch(ctx domain.Context, in domain.RerankInput) ([]domain.RankedCandidate, error) {
	if len(in.Candidates) == 0 {
		return nil, nil
	}
	if len(in.Candidates) > domain.RerankBatchSize {
		return nil, fmt.Errorf("%w: rerank batch of %d exceeds %d",
			domain.ErrInvalidArgument, len(in.Candidates), domain.RerankBatchSize)
	}

	summaries, err := json.Marshal(in.Candidates)
	if err != nil {
		return nil, fmt.Errorf("op=ai.RerankBatch: %w", err)
	}
	user := "Requirements:\n" + in.Requirements + "\n\nCandidates:\n" + string(summaries)

	raw, err := c.chatFunction(ctx, rerankSchema(in.AllowedFields), rerankSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("op=ai.RerankBatch: %w", err)
	}
	var decoded struct {
		Candidates []domain.RankedCandidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("op=ai.RerankBatch: %w: %v", domain.ErrParseFailure, err)
	}

	allowed := map[string]struct{}{}
	for _, f := range in.AllowedFields {
		allowed[f] = struct{}{}
	}
	byID := map[string]domain.RankedCandidate{}
	for _, rc := range decoded.Candidates {
		if err := validate.Struct(rc); err != nil {
			slog.Warn("rerank entry failed validation",
				slog.String("candidate_id", rc.CandidateID), slog.Any("error", err))
			continue
		}
		rc.RequirementsMet = filterFields(rc.RequirementsMet, allowed)
		rc.RequirementsMissing = filterFields(rc.RequirementsMissing, allowed)
		// a field claimed met cannot also be missing
		rc.RequirementsMissing = excludeFields(rc.RequirementsMissing, rc.RequirementsMet)
		byID[rc.CandidateID] = rc
	}

	// one output per input: candidates the model dropped fall back to their
	// programmatic score
	out := make([]domain.RankedCandidate, 0, len(in.Candidates))
	for _, cand := range in.Candidates {
		rc, ok := byID[cand.CandidateID]
		if !ok {
			slog.Warn("rerank output missing candidate, using programmatic score",
				slog.String("candidate_id", cand.CandidateID))
			rc = domain.RankedCandidate{
				CandidateID:       cand.CandidateID,
				ReRankScore:       cand.FinalScore,
				MeetsRequirements: cand.Compliance == nil || cand.Compliance.MeetsAll,
			}
		}
		out = append(out, rc)
	}
	return out, nil
}

func filterFields(fields []string, allowed map[string]struct{}) []string {
	if len(fields) == 0 {
		return fields
	}
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := allowed[f]; ok {
			kept = append(kept, f)
		}
	}
	return kept
}

func excludeFields(fields, exclude []string) []string {
	if len(fields) == 0 || len(exclude) == 0 {
		return fields
	}
	drop := make(map[string]struct{}, len(exclude))
	for _, f := range exclude {
		drop[f] = struct{}{}
	}
	kept := fields[:0]
	for _, f := range fields {
		if _, ok := drop[f]; !ok {
			kept = append(kept, f)
		}
	}
	return kept
}
