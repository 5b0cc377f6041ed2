package asynqadp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
	"github.com/fairyhunter13/resume-match-pipeline/internal/progress"
	"github.com/fairyhunter13/resume-match-pipeline/internal/usecase"
)

// pool is one queue served by its own asynq server, so concurrency is a
// hard cap per queue rather than a priority weight on a shared pool.
type pool struct {
	queue       string
	concurrency int
	server      *asynq.Server
	mux         *asynq.ServeMux
}

// Worker binds the three queues to their handlers, one server per queue:
// jd-processing runs a single worker so a JD is never parsed twice
// concurrently, resume-processing runs MaxWorkers, ranking runs
// RankingConcurrency.
type Worker struct {
	pools    []pool
	done     chan struct{}
	stopOnce sync.Once

	jd       *usecase.JDParse
	pipeline *usecase.ResumePipeline
	ranking  *usecase.Ranking
	sink     domain.ProgressSink
}

// NewWorker configures one asynq server per queue and registers the task
// handlers on the matching mux.
func NewWorker(opt asynq.RedisClientOpt, cfg config.Config, jd *usecase.JDParse, pipeline *usecase.ResumePipeline, ranking *usecase.Ranking, sink domain.ProgressSink) *Worker {
	w := &Worker{
		done:     make(chan struct{}),
		jd:       jd,
		pipeline: pipeline,
		ranking:  ranking,
		sink:     sink,
	}

	jdMux := asynq.NewServeMux()
	jdMux.HandleFunc(TaskParseJD, w.handleParseJD)
	resumeMux := asynq.NewServeMux()
	resumeMux.HandleFunc(TaskProcessResumeGroup, w.handleResumeGroup)
	resumeMux.HandleFunc(TaskProcessResume, w.handleResume)
	rankMux := asynq.NewServeMux()
	rankMux.HandleFunc(TaskRankBatch, w.handleRankBatch)

	for _, p := range []struct {
		queue       string
		concurrency int
		mux         *asynq.ServeMux
	}{
		{QueueJD, 1, jdMux},
		{QueueResume, cfg.MaxWorkers, resumeMux},
		{QueueRanking, cfg.RankingConcurrency, rankMux},
	} {
		srv := asynq.NewServer(opt, asynq.Config{
			Concurrency:     p.concurrency,
			Queues:          map[string]int{p.queue: 1},
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          slogAdapter{},
		})
		w.pools = append(w.pools, pool{
			queue:       p.queue,
			concurrency: p.concurrency,
			server:      srv,
			mux:         p.mux,
		})
	}
	return w
}

// Run starts every queue pool and blocks until Shutdown.
func (w *Worker) Run() error {
	for i, p := range w.pools {
		if err := p.server.Start(p.mux); err != nil {
			for _, started := range w.pools[:i] {
				started.server.Shutdown()
			}
			return fmt.Errorf("op=worker.Run: queue %s: %w", p.queue, err)
		}
		slog.Info("queue pool started",
			slog.String("queue", p.queue), slog.Int("concurrency", p.concurrency))
	}
	<-w.done
	return nil
}

// Shutdown stops intake on every pool, then waits for in-flight handlers
// within the configured grace window.
func (w *Worker) Shutdown() {
	for _, p := range w.pools {
		p.server.Stop()
	}
	for _, p := range w.pools {
		p.server.Shutdown()
	}
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Worker) handleParseJD(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("queue.worker").Start(ctx, "ParseJD")
	defer span.End()

	var in usecase.ParseJDInput
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	tr := progress.NewTracker(in.JobID, fmt.Sprintf("[%s]", in.JobID), w.sink)
	return w.observe(QueueJD, func() error {
		return w.jd.Process(ctx, in, tr)
	})
}

// handleResumeGroup echoes a tracking record for the fan-out parent; the
// children are enqueued by whoever created the group.
func (w *Worker) handleResumeGroup(ctx context.Context, t *asynq.Task) error {
	var in GroupInput
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	tr := progress.NewTracker(in.JobID, fmt.Sprintf("[%s]", in.JobID), w.sink)
	tr.Update(ctx, 0, "fan_out", fmt.Sprintf("%d resumes queued", in.TotalResumes),
		progress.WithMetadata(map[string]any{"totalResumes": in.TotalResumes, "groupId": in.GroupID}))
	return nil
}

func (w *Worker) handleResume(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("queue.worker").Start(ctx, "ProcessResume")
	defer span.End()

	var in usecase.ProcessResumeInput
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	prefix := fmt.Sprintf("[%d/%d][%s]", in.Index, in.Total, in.ResumeID)
	tr := progress.NewTracker(in.ResumeID, prefix, w.sink)
	return w.observe(QueueResume, func() error {
		return w.pipeline.Process(ctx, in, tr)
	})
}

func (w *Worker) handleRankBatch(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("queue.worker").Start(ctx, "RankBatch")
	defer span.End()

	var in usecase.RankBatchInput
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	prefix := fmt.Sprintf("[%d/%d][%s]", in.BatchIndex+1, in.TotalBatches, in.JobID)
	tr := progress.NewTracker(in.JobID, prefix, w.sink)
	return w.observe(QueueRanking, func() error {
		return w.ranking.RankBatch(ctx, in, tr)
	})
}

// observe wraps a handler with queue metrics and retry classification:
// retryable errors go back to the substrate, everything else skips retry.
func (w *Worker) observe(queue string, fn func() error) error {
	observability.StartProcessingJob(queue)
	err := fn()
	if err == nil {
		observability.CompleteJob(queue)
		return nil
	}
	observability.FailJob(queue)
	// cancellations (shutdown mid-handler) go back to the substrate so the
	// job runs again after restart
	if domain.IsRetryable(err) || errIsContextDone(err) {
		return err
	}
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}

// slogAdapter routes asynq's internal logging through slog.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...any) { slog.Debug(fmt.Sprint(args...)) }
func (slogAdapter) Info(args ...any)  { slog.Info(fmt.Sprint(args...)) }
func (slogAdapter) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...)) }
func (slogAdapter) Error(args ...any) { slog.Error(fmt.Sprint(args...)) }
func (slogAdapter) Fatal(args ...any) { slog.Error(fmt.Sprint(args...)) }

var _ asynq.Logger = slogAdapter{}

// errIsContextDone reports whether an error chain ends in cancellation;
// cancellation is fatal at the current stage and not worth a local retry.
func errIsContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
