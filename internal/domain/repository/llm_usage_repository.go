package repository

import (
	"context"
	"time"

	"z-writer-ai-api/internal/domain/entity"
)

// LLMUsageEventRepository 引擎用量流水
type LLMUsageEventRepository interface {
	Create(ctx context.Context, event *entity.LLMUsageEvent) error
	GetTokenUsage(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (int64, error)
}
