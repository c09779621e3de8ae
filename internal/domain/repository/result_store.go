package repository

import (
	"context"
	"errors"

	"z-writer-ai-api/internal/domain/entity"
)

// ErrInFlight 同一请求 ID 的生成正在进行
var ErrInFlight = errors.New("generation already in flight")

// ResultStore 已交付结果存储，用于按请求 ID 幂等重放和修订
type ResultStore interface {
	// Get 不存在时返回 nil, nil
	Get(ctx context.Context, requestID string) (*entity.Delivery, error)
	Save(ctx context.Context, d *entity.Delivery) error
}

// InFlightGuard 同一请求 ID 的并发互斥
type InFlightGuard interface {
	// Acquire 获取失败返回 ErrInFlight；release 必须调用
	Acquire(ctx context.Context, requestID string) (release func(), err error)
}

// RevisionCounter 已交付结果的修订计数
type RevisionCounter interface {
	// Next 自增并返回当前修订序号（从 1 开始）
	Next(ctx context.Context, requestID string) (int, error)
	// Rollback 撤销一次自增（修订未完成时）
	Rollback(ctx context.Context, requestID string) error
}
