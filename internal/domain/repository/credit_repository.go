package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// CreditLedger 积分流水
type CreditLedger interface {
	// Record 写入一条扣减流水；同一 request_id 已存在时不写入并返回 false
	Record(ctx context.Context, c *entity.CreditConsumption) (bool, error)
	GetByRequestID(ctx context.Context, requestID string) (*entity.CreditConsumption, error)
}
