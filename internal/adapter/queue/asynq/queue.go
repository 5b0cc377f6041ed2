// Package asynqadp binds the three named queues to their handlers over
// asynq, and enqueues the four task kinds.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/usecase"
)

// Task names, one per job kind.
const (
	TaskParseJD            = "parse-jd"
	TaskProcessResumeGroup = "process-resume-group"
	TaskProcessResume      = "process-resume"
	TaskRankBatch          = "rank-batch"
)

// Queue names. JD parsing is serialised; resume processing and ranking run
// with their configured concurrencies.
const (
	QueueJD      = "jd-processing"
	QueueResume  = "resume-processing"
	QueueRanking = "ranking"
)

const retention = 24 * time.Hour

// Queue enqueues tasks onto the three named queues.
type Queue struct {
	client *asynq.Client
}

// NewQueue creates an enqueue client against the Redis substrate.
func NewQueue(opt asynq.RedisClientOpt) *Queue {
	return &Queue{client: asynq.NewClient(opt)}
}

// Close releases the underlying Redis connections.
func (q *Queue) Close() error { return q.client.Close() }

// EnqueueParseJD queues a JD parse job.
func (q *Queue) EnqueueParseJD(ctx domain.Context, in usecase.ParseJDInput) (string, error) {
	return q.enqueue(ctx, TaskParseJD, QueueJD, in)
}

// GroupInput is the process-resume-group payload: the parent job carries
// only the fan-out size, its children are enqueued separately.
type GroupInput struct {
	JobID        string `json:"jobId"`
	GroupID      string `json:"groupId,omitempty"`
	TotalResumes int    `json:"totalResumes"`
}

// EnqueueResumeGroup queues the fan-out parent for a resume group.
func (q *Queue) EnqueueResumeGroup(ctx domain.Context, in GroupInput) (string, error) {
	return q.enqueue(ctx, TaskProcessResumeGroup, QueueResume, in)
}

// EnqueueResume queues one child resume pipeline.
func (q *Queue) EnqueueResume(ctx domain.Context, in usecase.ProcessResumeInput) (string, error) {
	return q.enqueue(ctx, TaskProcessResume, QueueResume, in)
}

// EnqueueRankBatch queues one independent ranking batch.
func (q *Queue) EnqueueRankBatch(ctx domain.Context, in usecase.RankBatchInput) (string, error) {
	return q.enqueue(ctx, TaskRankBatch, QueueRanking, in)
}

func (q *Queue) enqueue(ctx domain.Context, task, queue string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(task, b),
		asynq.Queue(queue), asynq.MaxRetry(3), asynq.Retention(retention))
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue task=%s: %w", task, err)
	}
	return info.ID, nil
}
