package generation

import (
	"context"
	"errors"
	"time"

	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/application/generation/pipeline"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/infrastructure/messaging"
	apperrors "z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"
)

var errJobCancelled = errors.New("job cancelled")

// SubmitJob 创建异步生成任务。同一请求 ID 已有任务时返回原任务
func (s *Service) SubmitJob(ctx context.Context, raw brief.RawBrief) (*entity.GenerationJob, error) {
	req, err := s.Normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.Jobs.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load job")
	}
	if existing != nil {
		if existing.UserID != req.UserID {
			return nil, apperrors.ErrRequestIDConflict
		}
		return existing, nil
	}
	if err := s.checkQuota(ctx, req.UserID); err != nil {
		return nil, err
	}

	job, err := entity.NewGenerationJob(s.newID(), req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalError, "failed to build job")
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create job")
	}

	if _, err := s.JobQueue.PublishGenerationJob(ctx, &messaging.GenerationJobMessage{
		JobID:     job.ID,
		RequestID: job.RequestID,
		UserID:    job.UserID,
	}); err != nil {
		job.Fail(string(apperrors.CodeMessagingError), "failed to enqueue job")
		if uerr := s.Jobs.Update(context.WithoutCancel(ctx), job); uerr != nil {
			logger.Error(ctx, "failed to mark unqueued job failed", uerr, "job_id", job.ID)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeMessagingError, "failed to enqueue job")
	}

	logger.Info(ctx, "generation job queued", "job_id", job.ID, "request_id", job.RequestID)
	return job, nil
}

// GetJob 获取任务，其他用户的任务视为不存在
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*entity.GenerationJob, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load job")
	}
	if job == nil || job.UserID != userID {
		return nil, apperrors.ErrJobNotFound
	}
	return job, nil
}

// ListJobs 分页列出用户的任务，status 为空时不过滤
func (s *Service) ListJobs(ctx context.Context, userID string, status entity.JobStatus, page repository.Pagination) (*repository.PagedResult[*entity.GenerationJob], error) {
	var filter *repository.JobFilter
	if status != "" {
		filter = &repository.JobFilter{Status: status}
	}
	res, err := s.Jobs.ListByUser(ctx, userID, filter, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list jobs")
	}
	return res, nil
}

// CancelJob 取消待执行或运行中的任务；运行中的任务在下一个状态边界停止
func (s *Service) CancelJob(ctx context.Context, userID, jobID string) (*entity.GenerationJob, error) {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == entity.JobStatusCancelled {
		return job, nil
	}
	if job.Status.Terminal() {
		return nil, apperrors.ErrJobFinished
	}

	ok, err := s.Jobs.UpdateStatus(ctx, job.ID, entity.JobStatusCancelled, entity.JobStatusPending, entity.JobStatusRunning)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to cancel job")
	}
	job, err = s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if !ok && job.Status != entity.JobStatusCancelled {
		return nil, apperrors.ErrJobFinished
	}
	logger.Info(ctx, "generation job cancelled", "job_id", job.ID)
	return job, nil
}

// HandleJobMessage 消费任务流消息
func (s *Service) HandleJobMessage(ctx context.Context, msg *messaging.Message) error {
	var m messaging.GenerationJobMessage
	if err := msg.UnmarshalPayload(&m); err != nil {
		logger.Error(ctx, "dropping malformed job message", err, "message_id", msg.ID)
		return nil
	}
	return s.RunJob(ctx, m.JobID)
}

// RunJob 执行任务。返回错误时消息留在队列中等待重投；
// 生成本身的失败记录在任务上，不再重投
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		logger.Warn(ctx, "job not found, skipping", "job_id", jobID)
		return nil
	}
	if job.Status.Terminal() {
		return nil
	}

	// 重投的消息对应的任务可能停留在 running，由请求 ID 互斥保证不会重复执行
	claimed, err := s.Jobs.UpdateStatus(ctx, job.ID, entity.JobStatusRunning, entity.JobStatusPending, entity.JobStatusRunning)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if job.StartedAt == nil {
		job.Start()
	}
	job.Status = entity.JobStatusRunning

	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)
	req, err := job.Request()
	if err != nil {
		logger.Error(ctx, "job input is corrupt", err)
		job.Fail(string(apperrors.CodeValidationFailed), "job input is corrupt")
		return s.finishJob(ctx, job)
	}

	runCtx, stop := s.watchCancellation(ctx, job.ID)
	res, err := s.deliver(runCtx, req, job.ID, func(ctx context.Context) (*entity.GenerationResult, error) {
		return s.Pipeline.Generate(ctx, req)
	})
	cancelled := errors.Is(context.Cause(runCtx), errJobCancelled)
	stop()

	switch {
	case err == nil:
		if cerr := job.Complete(res); cerr != nil {
			return cerr
		}
	case cancelled:
		logger.Info(ctx, "job stopped after cancellation")
		return nil
	case errors.Is(err, repository.ErrInFlight):
		return err
	case ctx.Err() != nil:
		// worker 退出，任务交还队列
		if _, uerr := s.Jobs.UpdateStatus(context.WithoutCancel(ctx), job.ID, entity.JobStatusPending, entity.JobStatusRunning); uerr != nil {
			logger.Error(ctx, "failed to requeue job", uerr)
		}
		return err
	default:
		appErr := pipeline.ToAppError(err)
		logger.Warn(ctx, "generation job failed", "code", appErr.Code, "error", err.Error())
		job.Fail(string(appErr.Code), appErr.Message)
	}
	return s.finishJob(ctx, job)
}

// finishJob 仅当任务仍在运行时写入终态，已被取消的任务保持取消。
// 状态切换与结果写入在同一事务中完成
func (s *Service) finishJob(ctx context.Context, job *entity.GenerationJob) error {
	return s.inTx(context.WithoutCancel(ctx), func(ctx context.Context) error {
		ok, err := s.Jobs.UpdateStatus(ctx, job.ID, job.Status, entity.JobStatusRunning)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info(ctx, "job left running state before completion", "status", job.Status)
			return nil
		}
		return s.Jobs.Update(ctx, job)
	})
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.Tx == nil {
		return fn(ctx)
	}
	return s.Tx.WithTransaction(ctx, fn)
}

// watchCancellation 轮询任务状态，发现取消标记时取消运行上下文
func (s *Service) watchCancellation(ctx context.Context, jobID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.cfg.CancelPollRate)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				job, err := s.Jobs.GetByID(runCtx, jobID)
				if err != nil {
					logger.Warn(runCtx, "failed to poll job status", "error", err.Error())
					continue
				}
				if job != nil && job.Status == entity.JobStatusCancelled {
					cancel(errJobCancelled)
					return
				}
			}
		}
	}()

	return runCtx, func() {
		close(done)
		cancel(nil)
	}
}
