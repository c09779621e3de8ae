package quota

import (
	"context"
	"errors"
	"fmt"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
)

// ChargeResult 一次计费的结果
type ChargeResult struct {
	Credits int
	// Duplicate 同一请求 ID 已计费，本次未重复扣减
	Duplicate bool
}

// CreditCharger 按请求 ID 幂等地记录积分扣减
type CreditCharger struct {
	ledger             repository.CreditLedger
	creditsPer100Words int
	chargePartial      bool
}

func NewCreditCharger(ledger repository.CreditLedger, creditsPer100Words int, chargePartial bool) *CreditCharger {
	return &CreditCharger{
		ledger:             ledger,
		creditsPer100Words: creditsPer100Words,
		chargePartial:      chargePartial,
	}
}

// Credits 按交付字数计算积分，不足 100 词按 100 词计；部分结果默认不计费
func (c *CreditCharger) Credits(res *entity.GenerationResult) int {
	if res == nil || res.WordCount <= 0 || (res.Partial && !c.chargePartial) {
		return 0
	}
	return (res.WordCount + 99) / 100 * c.creditsPer100Words
}

// Charge 记录一次扣减。重复调用同一请求 ID 不会产生第二笔扣减
func (c *CreditCharger) Charge(ctx context.Context, res *entity.GenerationResult) (ChargeResult, error) {
	if res == nil || res.RequestID == "" {
		return ChargeResult{}, errors.New("charge requires a request id")
	}

	credits := c.Credits(res)
	created, err := c.ledger.Record(ctx, &entity.CreditConsumption{
		RequestID: res.RequestID,
		UserID:    res.UserID,
		Credits:   credits,
		WordCount: res.WordCount,
		Partial:   res.Partial,
	})
	if err != nil {
		metrics.CreditsCharged.WithLabelValues("error").Inc()
		return ChargeResult{}, fmt.Errorf("record credit consumption: %w", err)
	}
	if !created {
		metrics.CreditsCharged.WithLabelValues("duplicate").Inc()
		logger.Info(ctx, "credit charge skipped, already recorded", "request_id", res.RequestID)
		prev, err := c.ledger.GetByRequestID(ctx, res.RequestID)
		if err != nil || prev == nil {
			return ChargeResult{Duplicate: true}, err
		}
		return ChargeResult{Credits: prev.Credits, Duplicate: true}, nil
	}

	metrics.CreditsCharged.WithLabelValues("charged").Inc()
	return ChargeResult{Credits: credits}, nil
}
