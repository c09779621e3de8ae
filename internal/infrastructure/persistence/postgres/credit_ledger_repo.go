package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
)

// CreditLedgerRepository 积分流水仓储
type CreditLedgerRepository struct {
	client *Client
}

var _ repository.CreditLedger = (*CreditLedgerRepository)(nil)

func NewCreditLedgerRepository(client *Client) *CreditLedgerRepository {
	return &CreditLedgerRepository{client: client}
}

// Record 插入流水，request_id 冲突时不写入
func (r *CreditLedgerRepository) Record(ctx context.Context, c *entity.CreditConsumption) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditLedgerRepository.Record")
	defer span.End()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	db := getDB(ctx, r.client.db)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(c)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to record credit consumption: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *CreditLedgerRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.CreditConsumption, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditLedgerRepository.GetByRequestID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var c entity.CreditConsumption
	if err := db.First(&c, "request_id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get credit consumption: %w", err)
	}
	return &c, nil
}
