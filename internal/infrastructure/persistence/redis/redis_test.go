package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "generation:result:req-1", ResultKey("req-1"))
	assert.Equal(t, "generation:inflight:req-1", InFlightKey("req-1"))
	assert.Equal(t, "generation:revisions:req-1", RevisionKey("req-1"))
	assert.Equal(t, "ratelimit:u-1:/v1/generations", BuildUserRateLimitKey("u-1", "/v1/generations"))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 9, Remaining(10, 1))
	assert.Equal(t, 0, Remaining(10, 10))
	assert.Equal(t, 0, Remaining(10, 12))
}

func TestOptions(t *testing.T) {
	opts := Options(&config.RedisConfig{Host: "cache", Port: 6380, DB: 2, PoolSize: 7, DialTimeout: time.Second})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

func TestDecodeDelivery(t *testing.T) {
	d := entity.Delivery{
		Request: entity.GenerationRequest{
			RequestID:        "req-1",
			TargetWordCount:  500,
			RequiredSections: []string{"Introduction"},
			RevisionRounds:   2,
		},
	}
	d.Result = entity.GenerationResult{
		RequestID: "req-1",
		Text:      "body",
		WordCount: 1,
		Report: entity.ConstraintReport{
			entity.ConstraintWordCount: {Passed: true, Hard: true, Detail: "actual=1 target=1"},
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	got, err := decodeDelivery(raw)
	require.NoError(t, err)
	assert.Equal(t, d, *got)

	_, err = decodeDelivery([]byte("{"))
	assert.Error(t, err)
}

func TestIsNil(t *testing.T) {
	assert.True(t, IsNil(redis.Nil))
	assert.False(t, IsNil(nil))
}
