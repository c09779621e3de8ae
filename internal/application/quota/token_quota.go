// Package quota 提供用户配额、用量与积分相关能力
package quota

import (
	"context"
	"fmt"
	"time"

	"z-writer-ai-api/internal/domain/repository"
)

// TokenQuotaExceededError 表示用户 Token 日配额已耗尽
type TokenQuotaExceededError struct {
	UserID string
	Max    int64
	Used   int64
}

func (e TokenQuotaExceededError) Error() string {
	return fmt.Sprintf("token quota exceeded: user=%s used=%d max=%d", e.UserID, e.Used, e.Max)
}

// TokenQuotaChecker 用于检查用户 Token 日配额
type TokenQuotaChecker struct {
	llmRepo         repository.LLMUsageEventRepository
	maxTokensPerDay int64
	now             func() time.Time
}

func NewTokenQuotaChecker(llmRepo repository.LLMUsageEventRepository, maxTokensPerDay int64) *TokenQuotaChecker {
	return &TokenQuotaChecker{
		llmRepo:         llmRepo,
		maxTokensPerDay: maxTokensPerDay,
		now:             time.Now,
	}
}

// CheckDailyTokens 检查用户是否还有当日 Token 配额。
// 返回：used/max（便于客户端展示），以及是否超过配额的 error。
func (c *TokenQuotaChecker) CheckDailyTokens(ctx context.Context, userID string) (used int64, max int64, err error) {
	if c == nil || c.llmRepo == nil || c.maxTokensPerDay <= 0 || userID == "" {
		return 0, 0, nil
	}

	now := c.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	used, err = c.llmRepo.GetTokenUsage(ctx, userID, start, end)
	if err != nil {
		return 0, c.maxTokensPerDay, err
	}
	if used >= c.maxTokensPerDay {
		return used, c.maxTokensPerDay, TokenQuotaExceededError{
			UserID: userID,
			Max:    c.maxTokensPerDay,
			Used:   used,
		}
	}
	return used, c.maxTokensPerDay, nil
}
