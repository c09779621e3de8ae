package pipeline

import (
	"context"
	"errors"
	"fmt"

	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/workflow/port"
	apperrors "z-writer-ai-api/pkg/errors"
)

// GenerationError 生成失败，携带失败前已完成的迭代次数与用量
type GenerationError struct {
	Err        error
	Iterations int
	Usage      entity.TokenUsage
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d iterations: %v", e.Iterations, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IterationsOf 返回错误中记录的迭代次数，无记录时为 0
func IterationsOf(err error) int {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Iterations
	}
	return 0
}

// ToAppError 将流水线错误映射为对外的错误码，不暴露内部细节
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	var ve *brief.ValidationError
	var ae *apperrors.AppError
	switch {
	case errors.As(err, &ve):
		return apperrors.ErrValidationFailed.WithDetail(ve.Field + ": " + ve.Reason).WithError(err)
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, port.ErrEngineRejected):
		return apperrors.ErrEngineRejected.WithError(err)
	case errors.Is(err, repository.ErrInFlight):
		return apperrors.ErrGenerationInProgress.WithError(err)
	case errors.Is(err, context.Canceled):
		return apperrors.ErrServiceUnavailable.WithDetail("generation cancelled").WithError(err)
	default:
		return apperrors.ErrEngineUnavailable.WithError(err)
	}
}
