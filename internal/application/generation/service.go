// Package generation 编排生成请求的幂等交付、修订、异步任务与计费
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/application/generation/pipeline"
	"z-writer-ai-api/internal/application/quota"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/infrastructure/messaging"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"
)

// Pipeline 单次生成流水线
type Pipeline interface {
	Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error)
	Revise(ctx context.Context, req entity.GenerationRequest, previous, comment string) (*entity.GenerationResult, error)
}

// QuotaChecker 用户 Token 日配额
type QuotaChecker interface {
	CheckDailyTokens(ctx context.Context, userID string) (used int64, max int64, err error)
}

// Charger 交付计费
type Charger interface {
	Charge(ctx context.Context, res *entity.GenerationResult) (quota.ChargeResult, error)
}

// EventPublisher 分析事件
type EventPublisher interface {
	PublishGenerationEvent(ctx context.Context, event *messaging.GenerationEvent)
}

// JobPublisher 异步任务投递
type JobPublisher interface {
	PublishGenerationJob(ctx context.Context, job *messaging.GenerationJobMessage) (string, error)
}

// Config 服务配置
type Config struct {
	// CancelPollRate 运行中任务检查取消标记的间隔
	CancelPollRate time.Duration
}

// Deps 服务依赖
type Deps struct {
	Normalizer *brief.Normalizer
	Pipeline   Pipeline
	Results    repository.ResultStore
	Guard      repository.InFlightGuard
	Revisions  repository.RevisionCounter
	Jobs       repository.JobRepository
	Tx         repository.Transactor
	Quota      QuotaChecker
	Charger    Charger
	JobQueue   JobPublisher
	Events     EventPublisher
}

// Service 生成服务
type Service struct {
	cfg Config
	Deps
	newID func() string
}

// NewService 创建生成服务
func NewService(cfg Config, deps Deps) *Service {
	if cfg.CancelPollRate <= 0 {
		cfg.CancelPollRate = 2 * time.Second
	}
	return &Service{cfg: cfg, Deps: deps, newID: uuid.NewString}
}

// RevisionInput 修订请求
type RevisionInput struct {
	// RequestID 修订结果的请求 ID，为空时按修订序号派生
	RequestID string
	Comment   string
}

// Generate 同步生成。同一请求 ID 已交付时直接返回原结果，不再调用引擎
func (s *Service) Generate(ctx context.Context, raw brief.RawBrief) (*entity.GenerationResult, error) {
	req, err := s.Normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if res, err := s.replay(ctx, req); err != nil || res != nil {
		return res, err
	}
	if err := s.checkQuota(ctx, req.UserID); err != nil {
		return nil, err
	}
	return s.deliver(ctx, req, "", func(ctx context.Context) (*entity.GenerationResult, error) {
		return s.Pipeline.Generate(ctx, req)
	})
}

// Get 获取已交付结果
func (s *Service) Get(ctx context.Context, userID, requestID string) (*entity.GenerationResult, error) {
	d, err := s.lookup(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	return &d.Result, nil
}

// Revise 基于已交付结果和审阅意见生成修订版，整条修订链的次数受根请求的 revisionRounds 限制
func (s *Service) Revise(ctx context.Context, userID, requestID string, in RevisionInput) (*entity.GenerationResult, error) {
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return nil, &brief.ValidationError{Field: "comment", Reason: "is required"}
	}

	d, err := s.lookup(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	// 已交付的修订请求直接重放，不占用修订次数
	if rid := strings.TrimSpace(in.RequestID); rid != "" {
		if res, err := s.replay(ctx, entity.GenerationRequest{RequestID: rid, UserID: userID}); err != nil || res != nil {
			return res, err
		}
	}
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	// 对修订版再修订时仍占用根请求的次数与预算
	root := d.Request.RootRequestID()
	n, err := s.Revisions.Next(ctx, root)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "revision counter unavailable")
	}
	rollback := func() {
		if err := s.Revisions.Rollback(context.WithoutCancel(ctx), root); err != nil {
			logger.Error(ctx, "failed to roll back revision counter", err, "request_id", root)
		}
	}
	if n > d.Request.RevisionRounds {
		rollback()
		return nil, apperrors.ErrRevisionLimitReached.WithDetail(
			fmt.Sprintf("at most %d revisions allowed", d.Request.RevisionRounds))
	}

	req := d.Request.Clone()
	req.RevisionOf = root
	req.RequestID = strings.TrimSpace(in.RequestID)
	if req.RequestID == "" {
		req.RequestID = fmt.Sprintf("%s-rev%d", root, n)
	}

	previous := d.Result.Text
	res, err := s.deliver(ctx, req, "", func(ctx context.Context) (*entity.GenerationResult, error) {
		return s.Pipeline.Revise(ctx, req, previous, comment)
	})
	if err != nil {
		rollback()
		return nil, err
	}
	return res, nil
}

// deliver 在请求 ID 互斥下执行生成，并完成存储、计费和事件投递
func (s *Service) deliver(ctx context.Context, req entity.GenerationRequest, jobID string, run func(context.Context) (*entity.GenerationResult, error)) (*entity.GenerationResult, error) {
	release, err := s.Guard.Acquire(ctx, req.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrInFlight) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "in-flight guard unavailable")
	}
	defer release()

	// 持有互斥后再查一次，并发请求可能已完成交付
	if res, err := s.replay(ctx, req); err != nil || res != nil {
		return res, err
	}

	res, err := run(ctx)
	if err != nil {
		s.publishFailure(ctx, req, jobID, err)
		return nil, err
	}
	s.afterDelivery(context.WithoutCancel(ctx), req, res, jobID)
	return res, nil
}

// afterDelivery 交付后的存储与计费不受调用方取消影响，失败只记录日志
func (s *Service) afterDelivery(ctx context.Context, req entity.GenerationRequest, res *entity.GenerationResult, jobID string) {
	if err := s.Results.Save(ctx, &entity.Delivery{Request: req, Result: *res}); err != nil {
		logger.Error(ctx, "failed to store generation result", err, "request_id", res.RequestID)
	}

	var credits int
	if s.Charger != nil {
		charge, err := s.Charger.Charge(ctx, res)
		if err != nil {
			logger.Error(ctx, "failed to charge credits", err, "request_id", res.RequestID)
		}
		credits = charge.Credits
	}

	if s.Events != nil {
		event := messaging.NewGenerationEvent(res, credits)
		event.JobID = jobID
		s.Events.PublishGenerationEvent(ctx, event)
	}
}

func (s *Service) publishFailure(ctx context.Context, req entity.GenerationRequest, jobID string, err error) {
	if s.Events == nil || errors.Is(err, repository.ErrInFlight) {
		return
	}
	appErr := pipeline.ToAppError(err)
	outcome := "unavailable"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
	case appErr.Code == apperrors.CodeEngineRejected:
		outcome = "rejected"
	}
	event := &messaging.GenerationEvent{
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		JobID:           jobID,
		Outcome:         outcome,
		ErrorCode:       string(appErr.Code),
		IterationCount:  pipeline.IterationsOf(err),
		TargetWordCount: req.TargetWordCount,
		OccurredAt:      time.Now().UTC(),
	}
	var ge *pipeline.GenerationError
	if errors.As(err, &ge) {
		event.TokenUsage = ge.Usage
	}
	s.Events.PublishGenerationEvent(context.WithoutCancel(ctx), event)
}

// replay 返回同一请求 ID 已交付的结果；请求 ID 属于其他用户时返回冲突
func (s *Service) replay(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	d, err := s.Results.Get(ctx, req.RequestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "result store unavailable")
	}
	if d == nil {
		return nil, nil
	}
	if d.Result.UserID != req.UserID {
		return nil, apperrors.ErrRequestIDConflict
	}
	logger.Info(ctx, "replaying delivered result", "request_id", req.RequestID)
	return &d.Result, nil
}

func (s *Service) lookup(ctx context.Context, userID, requestID string) (*entity.Delivery, error) {
	d, err := s.Results.Get(ctx, requestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "result store unavailable")
	}
	if d == nil || d.Result.UserID != userID {
		return nil, apperrors.ErrResultNotFound
	}
	return d, nil
}

// checkQuota 配额查询失败时放行
func (s *Service) checkQuota(ctx context.Context, userID string) error {
	if s.Quota == nil {
		return nil
	}
	used, max, err := s.Quota.CheckDailyTokens(ctx, userID)
	if err == nil {
		return nil
	}
	var qe quota.TokenQuotaExceededError
	if errors.As(err, &qe) {
		return apperrors.ErrQuotaExceeded.WithDetail(fmt.Sprintf("used %d of %d tokens today", used, max))
	}
	logger.Warn(ctx, "token quota check failed", "user_id", userID, "error", err.Error())
	return nil
}
