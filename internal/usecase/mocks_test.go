package usecase

import (
	"fmt"
	"sync"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

type fakeBackend struct {
	mu      sync.Mutex
	jobs    map[string]domain.Job
	resumes map[string]domain.Resume
	scores  map[string][]domain.ScoreRecord // jobID -> records, last write wins per resume

	failSubmit  bool
	jobStatuses []domain.JobStatus
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		jobs:    map[string]domain.Job{},
		resumes: map[string]domain.Resume{},
		scores:  map[string][]domain.ScoreRecord{},
	}
}

func (b *fakeBackend) GetJob(_ domain.Context, id string) (domain.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	return j, nil
}

func (b *fakeBackend) UpdateJDParsed(_ domain.Context, jobID string, a domain.JDAnalysis) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.jobs[jobID]
	j.Analysis = &a
	j.JDContentHash = domain.ContentHash(j.JDText)
	b.jobs[jobID] = j
	return nil
}

func (b *fakeBackend) UpdateJDCompliance(_ domain.Context, jobID string, fr domain.FilterRequirements) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.jobs[jobID]
	if j.Analysis != nil {
		j.Analysis.FilterRequirements = fr
		b.jobs[jobID] = j
	}
	return nil
}

func (b *fakeBackend) UpdateJDEmbeddings(_ domain.Context, jobID string, emb domain.SectionEmbeddings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.jobs[jobID]
	j.Embeddings = &emb
	b.jobs[jobID] = j
	return nil
}

func (b *fakeBackend) UpdateJDStatus(_ domain.Context, jobID string, status domain.JobStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	j := b.jobs[jobID]
	j.Status = status
	b.jobs[jobID] = j
	b.jobStatuses = append(b.jobStatuses, status)
	return nil
}

func (b *fakeBackend) GetResume(_ domain.Context, id string) (domain.Resume, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.resumes[id]
	if !ok {
		return domain.Resume{}, fmt.Errorf("%w: resume %s", domain.ErrNotFound, id)
	}
	return r, nil
}

func (b *fakeBackend) UpdateResume(_ domain.Context, id string, patch domain.ResumePatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.resumes[id]
	if patch.ExtractionStatus != nil {
		r.ExtractionStatus = *patch.ExtractionStatus
	}
	if patch.ParsingStatus != nil {
		r.ParsingStatus = *patch.ParsingStatus
	}
	if patch.EmbeddingStatus != nil {
		r.EmbeddingStatus = *patch.EmbeddingStatus
	}
	if patch.RawText != nil {
		r.RawText = *patch.RawText
	}
	if patch.ContentHash != nil {
		r.ContentHash = *patch.ContentHash
	}
	if patch.Parsed != nil {
		r.Parsed = patch.Parsed
	}
	if patch.Embeddings != nil {
		r.Embeddings = patch.Embeddings
	}
	b.resumes[id] = r
	return nil
}

func (b *fakeBackend) SubmitScore(_ domain.Context, rec domain.ScoreRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubmit {
		return fmt.Errorf("%w: submit score", domain.ErrUpstreamTimeout)
	}
	recs := b.scores[rec.JobID]
	for i, existing := range recs {
		if existing.ResumeID == rec.ResumeID {
			recs[i] = rec
			b.scores[rec.JobID] = recs
			return nil
		}
	}
	b.scores[rec.JobID] = append(recs, rec)
	return nil
}

func (b *fakeBackend) ListScores(_ domain.Context, jobID string) ([]domain.ScoreRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.ScoreRecord, len(b.scores[jobID]))
	copy(out, b.scores[jobID])
	return out, nil
}

func (b *fakeBackend) scoreFor(jobID, resumeID string) (domain.ScoreRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range b.scores[jobID] {
		if rec.ResumeID == resumeID {
			return rec, true
		}
	}
	return domain.ScoreRecord{}, false
}

type fakeAI struct {
	mu sync.Mutex

	parseJDCalls    int
	parseResumes    int
	embedCalls      int
	rerankCalls     int
	complianceCalls int

	parseJDFn    func(text string) (domain.JDAnalysis, error)
	parseResume  func(text, jdContext string) (domain.ParsedResume, error)
	embedFn      func(texts []string) ([][]float32, error)
	rerankFn     func(in domain.RerankInput) ([]domain.RankedCandidate, error)
	complianceFn func(raw string) (domain.ComplianceBlock, error)
}

func (a *fakeAI) ParseJD(_ domain.Context, text string) (domain.JDAnalysis, error) {
	a.mu.Lock()
	a.parseJDCalls++
	a.mu.Unlock()
	if a.parseJDFn != nil {
		return a.parseJDFn(text)
	}
	return domain.JDAnalysis{RoleTitle: "Backend Engineer", RequiredSkills: []string{"golang"}}, nil
}

func (a *fakeAI) ParseResume(_ domain.Context, text, jdContext string) (domain.ParsedResume, error) {
	a.mu.Lock()
	a.parseResumes++
	a.mu.Unlock()
	if a.parseResume != nil {
		return a.parseResume(text, jdContext)
	}
	return domain.ParsedResume{
		Name:            "Test Candidate",
		Email:           "t@example.com",
		YearsExperience: 5,
		CanonicalSkills: map[string][]string{"programming": {"golang"}},
	}, nil
}

func (a *fakeAI) ParseCompliance(_ domain.Context, raw string) (domain.ComplianceBlock, error) {
	a.mu.Lock()
	a.complianceCalls++
	a.mu.Unlock()
	if a.complianceFn != nil {
		return a.complianceFn(raw)
	}
	return domain.ComplianceBlock{RawPrompt: raw, Structured: map[string]domain.RequirementSpec{}}, nil
}

func (a *fakeAI) EmbedBatch(_ domain.Context, texts []string) ([][]float32, error) {
	a.mu.Lock()
	a.embedCalls++
	a.mu.Unlock()
	if a.embedFn != nil {
		return a.embedFn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (a *fakeAI) RerankBatch(_ domain.Context, in domain.RerankInput) ([]domain.RankedCandidate, error) {
	a.mu.Lock()
	a.rerankCalls++
	a.mu.Unlock()
	if a.rerankFn != nil {
		return a.rerankFn(in)
	}
	out := make([]domain.RankedCandidate, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		out = append(out, domain.RankedCandidate{
			CandidateID:       c.CandidateID,
			ReRankScore:       c.FinalScore,
			MeetsRequirements: true,
		})
	}
	return out, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (e *fakeExtractor) ExtractPath(_ domain.Context, _, _ string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.text, e.err
}

// resumeText is long enough and carries enough indicator terms to pass the
// extraction sanity check.
const resumeText = `Professional summary: backend engineer with experience in golang services.
Education: BSc Computer Science. Skills: golang, postgresql, redis.
Work experience includes building distributed project pipelines.`
