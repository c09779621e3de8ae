package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/pkg/logger"
)

// 仅当键仍持有本次令牌时删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InFlightGuard 同一请求 ID 的生成互斥
type InFlightGuard struct {
	client *Client
	ttl    time.Duration
}

var _ repository.InFlightGuard = (*InFlightGuard)(nil)

// NewInFlightGuard 创建互斥器，ttl 需大于单次生成的时间预算
func NewInFlightGuard(client *Client, ttl time.Duration) *InFlightGuard {
	return &InFlightGuard{client: client, ttl: ttl}
}

// InFlightKey 进行中标记键
func InFlightKey(requestID string) string {
	return fmt.Sprintf("generation:inflight:%s", requestID)
}

// Acquire 获取互斥，已被占用时返回 repository.ErrInFlight
func (g *InFlightGuard) Acquire(ctx context.Context, requestID string) (func(), error) {
	key := InFlightKey(requestID)
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire in-flight %s: %w", requestID, err)
	}
	if !ok {
		return nil, repository.ErrInFlight
	}

	release := func() {
		// 请求上下文可能已取消，释放仍需执行
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.client.rdb, []string{key}, token).Err(); err != nil {
			logger.Warn(rctx, "failed to release in-flight marker",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
	}
	return release, nil
}
