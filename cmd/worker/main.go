// Command worker runs the resume-match pipeline: it consumes the three
// named queues, scores resumes against jobs, and serves health and metrics
// endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/resume-match-pipeline/internal/adapter/ai"
	"github.com/fairyhunter13/resume-match-pipeline/internal/adapter/backend"
	asynqadp "github.com/fairyhunter13/resume-match-pipeline/internal/adapter/queue/asynq"
	tikaext "github.com/fairyhunter13/resume-match-pipeline/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
	"github.com/fairyhunter13/resume-match-pipeline/internal/progress"
	"github.com/fairyhunter13/resume-match-pipeline/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Infra: Redis for the queue substrate and progress channel.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword})
	defer func() { _ = rdb.Close() }()
	sink := progress.NewRedisSink(rdb)

	// Adapters.
	backendCli := backend.New(cfg)
	aiCli, err := ai.New(cfg)
	if err != nil {
		return fmt.Errorf("ai gateway: %w", err)
	}
	defer func() { _ = aiCli.Close() }()
	extractor := tikaext.New(cfg.TikaURL, cfg.UploadsRoot)

	// Usecases.
	jdParse := usecase.NewJDParse(backendCli, aiCli)
	pipeline := usecase.NewResumePipeline(backendCli, aiCli, extractor, cfg.UploadsRoot)
	ranking := usecase.NewRanking(backendCli, aiCli)

	opt := asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword}
	worker := asynqadp.NewWorker(opt, cfg, jdParse, pipeline, ranking, sink)

	// Health and metrics endpoints next to the worker.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router(rdb, aiCli),
	}
	go func() {
		slog.Info("metrics server listening", slog.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- worker.Run() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	worker.Shutdown()
	_ = srv.Shutdown(shutdownCtx)
	slog.Info("worker stopped")
	return nil
}

// router serves liveness, readiness (Redis reachable, breaker not open),
// and Prometheus metrics.
func router(rdb *redis.Client, aiCli *ai.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := rdb.Ping(req.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		if aiCli.Breaker().State() == ai.CircuitOpen {
			http.Error(w, "llm circuit open", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
