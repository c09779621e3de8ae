// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/application/generation/pipeline"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/interfaces/http/dto"
	"z-writer-ai-api/internal/interfaces/http/middleware"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"
)

// IdempotencyKeyHeader 幂等键请求头
const IdempotencyKeyHeader = "Idempotency-Key"

// GenerationService 生成服务，由 generation.Service 实现
type GenerationService interface {
	Generate(ctx context.Context, raw brief.RawBrief) (*entity.GenerationResult, error)
	Get(ctx context.Context, userID, requestID string) (*entity.GenerationResult, error)
	Revise(ctx context.Context, userID, requestID string, in generation.RevisionInput) (*entity.GenerationResult, error)
	SubmitJob(ctx context.Context, raw brief.RawBrief) (*entity.GenerationJob, error)
}

// JobService 异步任务查询与取消
type JobService interface {
	GetJob(ctx context.Context, userID, jobID string) (*entity.GenerationJob, error)
	CancelJob(ctx context.Context, userID, jobID string) (*entity.GenerationJob, error)
	ListJobs(ctx context.Context, userID string, status entity.JobStatus, page repository.Pagination) (*repository.PagedResult[*entity.GenerationJob], error)
}

var (
	_ GenerationService = (*generation.Service)(nil)
	_ JobService        = (*generation.Service)(nil)
)

func userID(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyUserID)
}

// idempotencyKey 依次取 Idempotency-Key 头、请求体中的 ID、X-Request-ID
func idempotencyKey(c *gin.Context, fromBody string) string {
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		return key
	}
	if key := strings.TrimSpace(fromBody); key != "" {
		return key
	}
	return c.GetString(middleware.ContextKeyRequestID)
}

// bindBody 解析 JSON 请求体，失败时按校验错误返回
func bindBody(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		dto.FromError(c, apperrors.ErrValidationFailed.WithDetail("body: "+err.Error()))
		return false
	}
	return true
}

// fail 将服务层错误映射为对外错误码并写回
func fail(c *gin.Context, msg string, err error) {
	appErr := pipeline.ToAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), msg, err)
	}
	dto.FromError(c, appErr)
}
