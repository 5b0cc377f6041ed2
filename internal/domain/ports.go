package domain

// Ports implemented by adapters. Interfaces are accepted here and concrete
// structs returned by the adapter constructors.

// Backend is the remote HTTP API that owns persistent storage for jobs,
// resumes and scores.
type Backend interface {
	GetJob(ctx Context, id string) (Job, error)
	UpdateJDParsed(ctx Context, jobID string, analysis JDAnalysis) error
	UpdateJDCompliance(ctx Context, jobID string, fr FilterRequirements) error
	UpdateJDEmbeddings(ctx Context, jobID string, emb SectionEmbeddings) error
	UpdateJDStatus(ctx Context, jobID string, status JobStatus) error
	GetResume(ctx Context, id string) (Resume, error)
	UpdateResume(ctx Context, id string, patch ResumePatch) error
	SubmitScore(ctx Context, rec ScoreRecord) error
	ListScores(ctx Context, jobID string) ([]ScoreRecord, error)
}

// RerankInput is one batched rerank call: at most RerankBatchSize candidate
// summaries plus the criteria and the allowed compliance field names.
type RerankInput struct {
	Candidates    []CandidateSummary
	Requirements  string
	AllowedFields []string
}

// AIGateway provides typed calls to the chat LLM and the embeddings
// endpoint.
type AIGateway interface {
	ParseJD(ctx Context, text string) (JDAnalysis, error)
	ParseResume(ctx Context, text, jdContext string) (ParsedResume, error)
	ParseCompliance(ctx Context, rawPrompt string) (ComplianceBlock, error)
	EmbedBatch(ctx Context, texts []string) ([][]float32, error)
	RerankBatch(ctx Context, in RerankInput) ([]RankedCandidate, error)
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// ProgressRecord is one structured progress event pushed to the queue
// substrate's progress channel.
type ProgressRecord struct {
	Percent   float64        `json:"percent"`
	Step      string         `json:"step"`
	Message   string         `json:"message,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Status    string         `json:"status"` // progress | completed | failed
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
	Timestamp string         `json:"timestamp"`
	Duration  float64        `json:"duration_seconds"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProgressSink delivers progress records to external observers.
type ProgressSink interface {
	Publish(ctx Context, jobID string, rec ProgressRecord) error
}
