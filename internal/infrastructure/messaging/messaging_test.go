package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/pkg/logger"
)

func TestCalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 8*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(4))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(20))
}

func TestDecodeMessage(t *testing.T) {
	msg, err := NewMessage("job-1", TypeGenerationJob, "u-1", &GenerationJobMessage{JobID: "job-1", RequestID: "req-1", UserID: "u-1"})
	require.NoError(t, err)
	msg.SetMetadata("request_id", "req-1")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	got, err := decodeMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": string(raw)}})
	require.NoError(t, err)
	assert.Equal(t, TypeGenerationJob, got.Type)
	assert.Equal(t, "req-1", got.GetMetadata("request_id"))

	var job GenerationJobMessage
	require.NoError(t, got.UnmarshalPayload(&job))
	assert.Equal(t, "job-1", job.JobID)

	_, err = decodeMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"other": "x"}})
	assert.Error(t, err)
	_, err = decodeMessage(redis.XMessage{ID: "3-0", Values: map[string]interface{}{"data": "{"}})
	assert.Error(t, err)
}

func TestMessageContext(t *testing.T) {
	msg := &Message{UserID: "u-1"}
	msg.SetMetadata("request_id", "req-1")
	msg.SetMetadata("job_id", "job-1")

	ctx := messageContext(context.Background(), msg)
	assert.Equal(t, "u-1", ctx.Value(logger.UserIDKey))
	assert.Equal(t, "req-1", ctx.Value(logger.RequestIDKey))
	assert.Equal(t, "job-1", ctx.Value(logger.JobIDKey))
	assert.Nil(t, ctx.Value(logger.TraceIDKey))
}

func TestNewGenerationEvent(t *testing.T) {
	ev := NewGenerationEvent(&entity.GenerationResult{
		RequestID:        "req-1",
		UserID:           "u-1",
		WordCount:        498,
		TargetWordCount:  500,
		IterationCount:   2,
		ProcessingTimeMs: 1200,
		TokenUsage:       entity.TokenUsage{TotalTokens: 900},
		Partial:          true,
	}, 0)
	assert.Equal(t, "partial", ev.Outcome)
	assert.Equal(t, 2, ev.IterationCount)
	assert.Equal(t, 900, ev.TokenUsage.TotalTokens)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestProducerStreams(t *testing.T) {
	p := NewProducer(nil, &config.RedisStreamConfig{})
	assert.Equal(t, StreamGenerationJobs, p.JobStream())
	assert.EqualValues(t, 100000, p.maxLen)

	p = NewProducer(nil, &config.RedisStreamConfig{JobStream: "jobs", AnalyticsStream: "events", MaxLen: 10})
	assert.Equal(t, Stream("jobs"), p.JobStream())
	assert.Equal(t, Stream("events"), p.analytics)
	assert.Equal(t, "dlq:jobs", p.JobStream().DLQStream())
}
