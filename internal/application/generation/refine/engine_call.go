package refine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/pkg/logger"
)

// call 带超时与指数退避地调用引擎：不可用错误重试，拒绝错误与取消立即返回
func (c *Controller) call(ctx context.Context, r *run) (wfmodel.Completion, error) {
	op := func() (wfmodel.Completion, error) {
		r.out.EngineCalls++
		callCtx := ctx
		if c.cfg.EngineTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.EngineTimeout)
			defer cancel()
		}

		start := c.now()
		comp, err := c.engine.Generate(callCtx, r.payload, r.sampling)
		if err == nil {
			r.out.Usage = r.out.Usage.Add(comp.Usage)
			c.recordUsage(ctx, r, comp, c.now().Sub(start))
			return comp, nil
		}

		switch {
		case ctx.Err() != nil:
			return comp, backoff.Permanent(ctx.Err())
		case errors.Is(err, port.ErrEngineRejected):
			return comp, backoff.Permanent(err)
		case errors.Is(err, port.ErrEngineUnavailable):
			return comp, err
		default:
			// 未分类错误（含单次调用超时）按可重试处理
			return comp, port.Unavailable(err)
		}
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.EngineMaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn(ctx, "engine call failed, retrying", "error", err.Error(), "backoff", next.String())
		}),
	)
}

func (c *Controller) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.BackoffInitial > 0 {
		b.InitialInterval = c.cfg.BackoffInitial
	}
	if c.cfg.BackoffMax > 0 {
		b.MaxInterval = c.cfg.BackoffMax
	}
	if c.cfg.BackoffMultiplier > 0 {
		b.Multiplier = c.cfg.BackoffMultiplier
	}
	return b
}

// recordUsage 记录用量，失败只打日志
func (c *Controller) recordUsage(ctx context.Context, r *run, comp wfmodel.Completion, d time.Duration) {
	if c.usage == nil {
		return
	}
	userID, requestID := service.UserFromContext(ctx), service.RequestFromContext(ctx)
	if userID == "" {
		userID = r.req.UserID
	}
	if requestID == "" {
		requestID = r.req.RequestID
	}
	err := c.usage.Record(context.WithoutCancel(ctx), service.LLMUsageInput{
		UserID:           userID,
		RequestID:        requestID,
		Workflow:         service.WorkflowFromContext(ctx),
		Provider:         comp.Provider,
		Model:            comp.Model,
		PromptTokens:     comp.Usage.PromptTokens,
		CompletionTokens: comp.Usage.CompletionTokens,
		DurationMs:       int(d.Milliseconds()),
	})
	if err != nil {
		logger.Warn(ctx, "record llm usage failed", "error", err.Error())
	}
}
