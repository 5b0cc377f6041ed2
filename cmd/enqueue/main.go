// Command enqueue submits work to the pipeline queues from the command
// line: a JD parse, a fan-out over a folder of resume records, or the
// ranking batches for a scored job.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/oklog/ulid/v2"

	"github.com/fairyhunter13/resume-match-pipeline/internal/adapter/ai"
	"github.com/fairyhunter13/resume-match-pipeline/internal/adapter/backend"
	asynqadp "github.com/fairyhunter13/resume-match-pipeline/internal/adapter/queue/asynq"
	"github.com/fairyhunter13/resume-match-pipeline/internal/config"
	"github.com/fairyhunter13/resume-match-pipeline/internal/observability"
	"github.com/fairyhunter13/resume-match-pipeline/internal/usecase"
)

func main() {
	var (
		kind      = flag.String("kind", "", "job kind: jd | resumes | ranking")
		jobID     = flag.String("job", "", "backend job id")
		groupID   = flag.String("group", "", "resume group id (generated when empty)")
		resumes   = flag.String("resumes", "", "comma-separated resumeId=fileName pairs")
		mandatory = flag.String("mandatory", "", "mandatory compliance prompt")
		soft      = flag.String("soft", "", "soft compliance prompt")
		criteria  = flag.String("criteria", "", "ranking criteria text")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	if *jobID == "" {
		fmt.Fprintln(os.Stderr, "-job is required")
		os.Exit(2)
	}

	q := asynqadp.NewQueue(asynq.RedisClientOpt{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword})
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	switch *kind {
	case "jd":
		id, err := q.EnqueueParseJD(ctx, usecase.ParseJDInput{
			JobID:           *jobID,
			MandatoryPrompt: *mandatory,
			SoftPrompt:      *soft,
		})
		exitOn(err)
		slog.Info("jd parse enqueued", slog.String("job_id", *jobID), slog.String("task_id", id))

	case "resumes":
		pairs := parsePairs(*resumes)
		if len(pairs) == 0 {
			fmt.Fprintln(os.Stderr, "-resumes is required for kind=resumes")
			os.Exit(2)
		}
		gid := *groupID
		if gid == "" {
			gid = ulid.Make().String()
		}
		_, err := q.EnqueueResumeGroup(ctx, asynqadp.GroupInput{
			JobID: *jobID, GroupID: gid, TotalResumes: len(pairs),
		})
		exitOn(err)
		for i, pr := range pairs {
			_, err := q.EnqueueResume(ctx, usecase.ProcessResumeInput{
				JobID:    *jobID,
				ResumeID: pr[0],
				GroupID:  gid,
				FileName: pr[1],
				Index:    i + 1,
				Total:    len(pairs),
			})
			exitOn(err)
		}
		slog.Info("resume group enqueued",
			slog.String("job_id", *jobID), slog.String("group_id", gid), slog.Int("resumes", len(pairs)))

	case "ranking":
		backendCli := backend.New(cfg)
		aiCli, err := ai.New(cfg)
		exitOn(err)
		defer func() { _ = aiCli.Close() }()

		ranking := usecase.NewRanking(backendCli, aiCli)
		batches, err := ranking.PrepareBatches(ctx, *jobID, *criteria)
		exitOn(err)
		for _, b := range batches {
			_, err := q.EnqueueRankBatch(ctx, b)
			exitOn(err)
		}
		slog.Info("ranking enqueued", slog.String("job_id", *jobID), slog.Int("batches", len(batches)))

	default:
		fmt.Fprintln(os.Stderr, "-kind must be one of: jd, resumes, ranking")
		os.Exit(2)
	}
}

// parsePairs splits "id1=cv1.pdf,id2=cv2.pdf" into [id, fileName] pairs.
func parsePairs(s string) [][2]string {
	out := [][2]string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, file, ok := strings.Cut(part, "=")
		if !ok || id == "" || file == "" {
			continue
		}
		out = append(out, [2]string{id, file})
	}
	return out
}

func exitOn(err error) {
	if err != nil {
		slog.Error("enqueue failed", slog.Any("error", err))
		os.Exit(1)
	}
}
