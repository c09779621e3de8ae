package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

var storeTracer = otel.Tracer("redis.result_store")

// ResultStore 按请求 ID 保存已交付的生成结果及其需求
type ResultStore struct {
	client *Client
	ttl    time.Duration
	group  singleflight.Group
}

var _ repository.ResultStore = (*ResultStore)(nil)

// NewResultStore 创建结果存储
func NewResultStore(client *Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

// ResultKey 结果键
func ResultKey(requestID string) string {
	return fmt.Sprintf("generation:result:%s", requestID)
}

// Get 获取结果，不存在时返回 nil, nil；同一键的并发读取合并为一次
func (s *ResultStore) Get(ctx context.Context, requestID string) (*entity.Delivery, error) {
	key := ResultKey(requestID)
	ctx, span := storeTracer.Start(ctx, "result_store.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		raw, err := s.client.GetBytes(ctx, key)
		if err != nil {
			if IsNil(err) {
				return nil, nil
			}
			return nil, err
		}
		return decodeDelivery(raw)
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get result %s: %w", requestID, err)
	}
	d, _ := v.(*entity.Delivery)
	span.SetAttributes(attribute.Bool("cache.hit", d != nil))
	if d == nil {
		return nil, nil
	}
	// singleflight 共享同一指针，返回副本
	cp := entity.Delivery{Request: d.Request.Clone(), Result: d.Result}
	cp.Result.Report = d.Result.Report.Clone()
	return &cp, nil
}

// Save 保存结果
func (s *ResultStore) Save(ctx context.Context, d *entity.Delivery) error {
	requestID := d.Result.RequestID
	key := ResultKey(requestID)
	ctx, span := storeTracer.Start(ctx, "result_store.Save",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", s.ttl.Milliseconds()),
		))
	defer span.End()

	raw, err := json.Marshal(d)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl); err != nil {
		return fmt.Errorf("save result %s: %w", requestID, err)
	}
	return nil
}

func decodeDelivery(raw []byte) (*entity.Delivery, error) {
	var d entity.Delivery
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &d, nil
}
