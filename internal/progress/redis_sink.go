package progress

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

// latestTTL bounds how long the last progress record survives after the
// final event, so observers reconnecting late still see the outcome.
const latestTTL = 24 * time.Hour

// RedisSink publishes progress records on the queue substrate's progress
// channel and mirrors the latest record into a key for polling observers.
type RedisSink struct {
	rdb redis.UniversalClient
}

// NewRedisSink wraps a Redis client as a progress sink.
func NewRedisSink(rdb redis.UniversalClient) *RedisSink {
	return &RedisSink{rdb: rdb}
}

var _ domain.ProgressSink = (*RedisSink)(nil)

// Publish sends the record to channel progress:{jobID} and stores it at
// progress:{jobID}:latest.
func (s *RedisSink) Publish(ctx domain.Context, jobID string, rec domain.ProgressRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("op=progress.Publish: %w", err)
	}
	channel := "progress:" + jobID
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("op=progress.Publish: %w", err)
	}
	if err := s.rdb.Set(ctx, channel+":latest", payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("op=progress.Publish: %w", err)
	}
	return nil
}
