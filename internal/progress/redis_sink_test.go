package progress

import (
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-match-pipeline/internal/domain"
)

func TestRedisSinkStoresLatestRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(rdb)

	rec := domain.ProgressRecord{
		Percent:   42,
		Step:      "embed",
		Status:    "progress",
		Timestamp: "2026-08-24T10:00:00Z",
	}
	require.NoError(t, sink.Publish(t.Context(), "job-9", rec))

	raw, err := mr.Get("progress:job-9:latest")
	require.NoError(t, err)

	var got domain.ProgressRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, 42.0, got.Percent)
	assert.Equal(t, "embed", got.Step)
	assert.True(t, mr.TTL("progress:job-9:latest") > 0)
}

func TestRedisSinkPublishesOnChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	sub := rdb.Subscribe(t.Context(), "progress:job-9")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(t.Context())
	require.NoError(t, err)

	sink := NewRedisSink(rdb)
	require.NoError(t, sink.Publish(t.Context(), "job-9", domain.ProgressRecord{Percent: 5, Step: "fetch_resume"}))

	msg, err := sub.ReceiveMessage(t.Context())
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"fetch_resume"`)
}
