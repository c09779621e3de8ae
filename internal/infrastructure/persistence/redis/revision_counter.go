package redis

import (
	"context"
	"fmt"
	"time"

	"z-writer-ai-api/internal/domain/repository"
)

// RevisionCounter 每个已交付结果的修订次数
type RevisionCounter struct {
	client *Client
	ttl    time.Duration
}

var _ repository.RevisionCounter = (*RevisionCounter)(nil)

// NewRevisionCounter 创建修订计数器，ttl 与结果保留时长一致
func NewRevisionCounter(client *Client, ttl time.Duration) *RevisionCounter {
	return &RevisionCounter{client: client, ttl: ttl}
}

// RevisionKey 修订计数键
func RevisionKey(requestID string) string {
	return fmt.Sprintf("generation:revisions:%s", requestID)
}

func (r *RevisionCounter) Next(ctx context.Context, requestID string) (int, error) {
	ctx, span := tracer.Start(ctx, "redis.RevisionNext")
	defer span.End()

	key := RevisionKey(requestID)
	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("increment revision %s: %w", requestID, err)
	}
	return int(incr.Val()), nil
}

func (r *RevisionCounter) Rollback(ctx context.Context, requestID string) error {
	if err := r.client.rdb.Decr(ctx, RevisionKey(requestID)).Err(); err != nil {
		return fmt.Errorf("rollback revision %s: %w", requestID, err)
	}
	return nil
}
