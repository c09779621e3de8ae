// Package pipeline 串联需求编译、迭代修正、润色与结果组装
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"z-writer-ai-api/internal/application/generation/humanize"
	"z-writer-ai-api/internal/application/generation/refine"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
	"z-writer-ai-api/pkg/tracer"
)

// Config 流水线配置
type Config struct {
	// InternalRetries 评估或润色内部故障时整次生成的重试次数
	InternalRetries int
	// WordCountSlack 润色允许的额外字数偏移，占目标字数的比例
	WordCountSlack float64
}

// PromptCompiler 初始指令编译
type PromptCompiler interface {
	Compile(ctx context.Context, req entity.GenerationRequest) (wfmodel.PromptPayload, error)
	CompileRevision(ctx context.Context, req entity.GenerationRequest, previous, comment string) (wfmodel.PromptPayload, error)
}

// Refiner 迭代修正
type Refiner interface {
	Run(ctx context.Context, req entity.GenerationRequest, payload wfmodel.PromptPayload) (refine.Outcome, error)
}

// Humanizer 润色
type Humanizer interface {
	Humanize(text string, req entity.GenerationRequest, maxWordDelta int) (humanize.Outcome, error)
}

// Pipeline 生成流水线，不持有任何请求级状态
type Pipeline struct {
	cfg       Config
	compiler  PromptCompiler
	refiner   Refiner
	humanizer Humanizer
	now       func() time.Time
}

// NewPipeline 创建流水线
func NewPipeline(cfg Config, compiler PromptCompiler, refiner Refiner, humanizer Humanizer) *Pipeline {
	if cfg.InternalRetries < 0 {
		cfg.InternalRetries = 0
	}
	return &Pipeline{
		cfg:       cfg,
		compiler:  compiler,
		refiner:   refiner,
		humanizer: humanizer,
		now:       time.Now,
	}
}

// internalError 评估或润色阶段的内部故障，整次生成可重试
type internalError struct {
	stage string
	err   error
}

func (e *internalError) Error() string {
	return fmt.Sprintf("internal failure in %s: %v", e.stage, e.err)
}
func (e *internalError) Unwrap() error { return e.err }

// Generate 执行一次完整生成
func (p *Pipeline) Generate(ctx context.Context, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	return p.execute(ctx, "generate", req, func(ctx context.Context) (wfmodel.PromptPayload, error) {
		return p.compiler.Compile(ctx, req)
	})
}

// Revise 基于已交付文本与审阅意见再生成一次，req 为本次修订的新需求（独立的请求 ID）
func (p *Pipeline) Revise(ctx context.Context, req entity.GenerationRequest, previous, comment string) (*entity.GenerationResult, error) {
	return p.execute(ctx, "revise", req, func(ctx context.Context) (wfmodel.PromptPayload, error) {
		return p.compiler.CompileRevision(ctx, req, previous, comment)
	})
}

func (p *Pipeline) execute(ctx context.Context, op string, req entity.GenerationRequest, compile func(context.Context) (wfmodel.PromptPayload, error)) (*entity.GenerationResult, error) {
	start := p.now()
	ctx = service.WithRequest(ctx, req.UserID, req.RequestID)
	ctx = logger.WithContext(ctx, logger.RequestIDKey, req.RequestID)
	ctx, span := tracer.Start(ctx, "pipeline."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.String("content_type", req.ContentType),
		attribute.Int("target_word_count", req.TargetWordCount),
	)

	metrics.ActiveGenerations.Inc()
	defer metrics.ActiveGenerations.Dec()

	var (
		res *entity.GenerationResult
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = p.attempt(ctx, req, start, compile)
		var ie *internalError
		if err == nil || !errors.As(err, &ie) {
			break
		}
		logger.Error(ctx, "generation internal failure", err, "attempt", attempt+1, "stage", ie.stage)
		if attempt >= p.cfg.InternalRetries || ctx.Err() != nil {
			err = &GenerationError{Err: port.Unavailable(err)}
			break
		}
	}

	outcome := outcomeLabel(res, err)
	metrics.GenerationTotal.WithLabelValues(req.ContentType, outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(req.ContentType).Observe(p.now().Sub(start).Seconds())
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(ctx, "generation failed", "outcome", outcome, "error", err.Error())
		return nil, err
	}

	metrics.GenerationIterations.WithLabelValues(req.ContentType).Observe(float64(res.IterationCount))
	metrics.GenerationWordCount.WithLabelValues(req.ContentType).Observe(float64(res.WordCount))
	span.SetAttributes(
		attribute.Int("iteration_count", res.IterationCount),
		attribute.Int("word_count", res.WordCount),
		attribute.Bool("partial", res.Partial),
	)
	logger.Info(ctx, "generation completed",
		"outcome", outcome,
		"iterations", res.IterationCount,
		"word_count", res.WordCount,
		"processing_time_ms", res.ProcessingTimeMs,
	)
	return res, nil
}

// attempt 单次尝试。编译、评估、润色中的 panic 均视为内部故障
func (p *Pipeline) attempt(ctx context.Context, req entity.GenerationRequest, start time.Time, compile func(context.Context) (wfmodel.PromptPayload, error)) (res *entity.GenerationResult, err error) {
	stage := "compile"
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &internalError{stage: stage, err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	payload, err := compile(ctx)
	if err != nil {
		return nil, &internalError{stage: stage, err: err}
	}

	stage = "refine"
	out, err := p.refiner.Run(ctx, req, payload)
	if err != nil {
		return nil, &GenerationError{Err: err, Iterations: out.Iterations, Usage: out.Usage}
	}

	// 取消只在阶段边界生效，不会返回润色了一半的文本
	if err := ctx.Err(); err != nil {
		return nil, &GenerationError{Err: err, Iterations: out.Iterations, Usage: out.Usage}
	}

	stage = "humanize"
	text, edits := out.Text, 0
	if req.AntiAIDetection && req.HumanizationRates.Any() {
		h, err := p.humanizer.Humanize(out.Text, req, p.maxWordDelta(req))
		if err != nil {
			return nil, &internalError{stage: stage, err: err}
		}
		text, edits = h.Text, h.Total()
	}

	result := Assemble(req, out, text, edits, p.now().Sub(start), p.now())
	return &result, nil
}

func (p *Pipeline) maxWordDelta(req entity.GenerationRequest) int {
	return int(math.Floor(float64(req.TargetWordCount) * p.cfg.WordCountSlack))
}

func outcomeLabel(res *entity.GenerationResult, err error) string {
	switch {
	case err == nil && res.Partial:
		return "partial"
	case err == nil:
		return "accepted"
	case errors.Is(err, port.ErrEngineRejected):
		return "rejected"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unavailable"
	}
}
