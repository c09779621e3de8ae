package refine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"z-writer-ai-api/internal/application/generation/evaluator"
	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/pkg/logger"
	"z-writer-ai-api/pkg/metrics"
)

// Config 控制器配置
type Config struct {
	MaxIterations int
	TimeBudget    time.Duration

	EngineTimeout     time.Duration
	EngineMaxAttempts int
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64

	// RegenerateWordDeviation 字数相对偏差超过该值时整篇重写
	RegenerateWordDeviation float64
	// RepairMaxFailingRatio 未通过约束占比达到该值时整篇重写，否则定向修正
	RepairMaxFailingRatio float64

	BaseTemperature           float64
	RegenerateTemperatureStep float64
	MinTemperature            float64
	MaxTemperature            float64
	MaxTokensPerWord          float64
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxIterations:             5,
		TimeBudget:                3 * time.Minute,
		EngineTimeout:             90 * time.Second,
		EngineMaxAttempts:         3,
		BackoffInitial:            500 * time.Millisecond,
		BackoffMax:                5 * time.Second,
		BackoffMultiplier:         2,
		RegenerateWordDeviation:   0.5,
		RepairMaxFailingRatio:     0.5,
		BaseTemperature:           0.7,
		RegenerateTemperatureStep: 0.15,
		MinTemperature:            0.2,
		MaxTemperature:            1.1,
		MaxTokensPerWord:          2.0,
	}
}

// PromptCompiler 控制器需要的编译能力
type PromptCompiler interface {
	CompileRepair(ctx context.Context, req entity.GenerationRequest, draft string, report entity.ConstraintReport) (wfmodel.PromptPayload, error)
}

// DraftEvaluator 草稿评估
type DraftEvaluator interface {
	Evaluate(text string, req entity.GenerationRequest) evaluator.Evaluation
}

// Controller 迭代控制器。无状态，可被并发请求共享
type Controller struct {
	cfg      Config
	engine   port.Engine
	compiler PromptCompiler
	eval     DraftEvaluator
	usage    service.LLMUsageRecorder
	now      func() time.Time
}

// NewController 创建控制器，usage 可为 nil
func NewController(cfg Config, engine port.Engine, compiler PromptCompiler, eval DraftEvaluator, usage service.LLMUsageRecorder) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1
	}
	if cfg.EngineMaxAttempts <= 0 {
		cfg.EngineMaxAttempts = 1
	}
	return &Controller{
		cfg:      cfg,
		engine:   engine,
		compiler: compiler,
		eval:     eval,
		usage:    usage,
		now:      time.Now,
	}
}

// run 单次运行的可变状态，每次 Run 独立创建
type run struct {
	req      entity.GenerationRequest
	original wfmodel.PromptPayload
	payload  wfmodel.PromptPayload
	sampling wfmodel.SamplingConfig

	state   State
	started time.Time
	regens  int

	current *draft
	best    *draft
	out     Outcome
}

// Run 从 payload 开始迭代，直到接受、预算耗尽或失败。
// 取消只在状态迁移边界生效；引擎调用使用独立的超时。
func (c *Controller) Run(ctx context.Context, req entity.GenerationRequest, payload wfmodel.PromptPayload) (Outcome, error) {
	r := &run{
		req:      req,
		original: payload.Clone(),
		state:    StateInit,
		started:  c.now(),
	}

	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			c.transition(ctx, r, StateFailed)
			return r.out, err
		}

		var err error
		switch r.state {
		case StateInit:
			err = c.init(ctx, r)
		case StateGenerating:
			err = c.generate(ctx, r)
		case StateEvaluating:
			c.evaluate(ctx, r)
		case StateRepairing:
			err = c.repair(ctx, r)
		case StateRegenerating:
			c.regenerate(ctx, r)
		default:
			err = fmt.Errorf("unexpected state %s", r.state)
		}
		if err != nil {
			c.transition(ctx, r, StateFailed)
			return r.out, err
		}
	}

	if r.state == StateExhausted {
		c.finishExhausted(ctx, r)
	} else {
		c.finish(r, r.current)
	}

	logger.Info(ctx, "refinement finished",
		"state", r.out.State,
		"iterations", r.out.Iterations,
		"engine_calls", r.out.EngineCalls,
		"partial", r.out.Partial,
	)
	return r.out, nil
}

func (c *Controller) init(ctx context.Context, r *run) error {
	if len(r.original.Messages) == 0 {
		return errors.New("empty prompt payload")
	}
	r.payload = r.original.Clone()
	r.sampling = wfmodel.SamplingConfig{
		Temperature: c.clampTemperature(c.cfg.BaseTemperature),
		MaxTokens:   c.maxTokens(r.req),
	}
	c.transition(ctx, r, StateGenerating)
	return nil
}

// generate 调用引擎。迭代或时间预算用尽时转入 Exhausted
func (c *Controller) generate(ctx context.Context, r *run) error {
	if r.best != nil && c.budgetSpent(r) {
		c.transition(ctx, r, StateExhausted)
		return nil
	}

	comp, err := c.call(service.WithWorkflow(ctx, r.payload.Workflow), r)
	if err != nil {
		if errors.Is(err, port.ErrEngineRejected) || ctx.Err() != nil || r.best == nil {
			return err
		}
		// 已有可用草稿时，引擎不可用按预算耗尽处理
		logger.Warn(ctx, "engine unavailable after retries, falling back to best draft", "error", err.Error())
		c.transition(ctx, r, StateExhausted)
		return nil
	}

	r.current = &draft{text: comp.Text, provider: comp.Provider, model: comp.Model}
	c.transition(ctx, r, StateEvaluating)
	return nil
}

func (c *Controller) evaluate(ctx context.Context, r *run) {
	ev := c.eval.Evaluate(r.current.text, r.req)
	r.out.Iterations++
	r.current.eval = ev
	r.current.iteration = r.out.Iterations

	for _, name := range ev.Report.Failing() {
		metrics.ConstraintFailures.WithLabelValues(entity.ConstraintKind(name)).Inc()
	}
	if r.best == nil || evaluator.Better(ev, r.best.eval) {
		r.best = r.current
	}

	logger.Debug(ctx, "draft evaluated",
		"iteration", r.out.Iterations,
		"word_count", ev.WordCount,
		"penalty", ev.Penalty,
		"failing", ev.Report.Failing(),
	)

	switch {
	case ev.Report.Passed():
		c.transition(ctx, r, StateAccepted)
	case c.budgetSpent(r):
		c.transition(ctx, r, StateExhausted)
	case c.shouldRegenerate(ev):
		c.transition(ctx, r, StateRegenerating)
	default:
		c.transition(ctx, r, StateRepairing)
	}
}

func (c *Controller) repair(ctx context.Context, r *run) error {
	payload, err := c.compiler.CompileRepair(ctx, r.req, r.current.text, r.current.eval.Report)
	if err != nil {
		return fmt.Errorf("compile repair prompt: %w", err)
	}
	r.payload = payload
	r.sampling.Temperature = c.clampTemperature(c.cfg.BaseTemperature)
	c.transition(ctx, r, StateGenerating)
	return nil
}

// regenerate 丢弃当前草稿，用原始指令和调整后的温度重新生成
func (c *Controller) regenerate(ctx context.Context, r *run) {
	r.regens++
	r.payload = r.original.Clone()
	r.sampling.Temperature = c.clampTemperature(c.cfg.BaseTemperature + float64(r.regens)*c.cfg.RegenerateTemperatureStep)
	c.transition(ctx, r, StateGenerating)
}

// finishExhausted 预算耗尽：最优草稿满足全部硬约束则接受，否则标记为部分结果
func (c *Controller) finishExhausted(ctx context.Context, r *run) {
	if r.best.eval.Report.HardPassed() {
		c.transition(ctx, r, StateAccepted)
		c.finish(r, r.best)
		return
	}
	c.finish(r, r.best)
	r.out.Partial = true
}

func (c *Controller) finish(r *run, d *draft) {
	r.out.State = r.state
	r.out.Text = d.text
	r.out.Evaluation = d.eval
	r.out.Provider = d.provider
	r.out.Model = d.model
}

func (c *Controller) shouldRegenerate(ev evaluator.Evaluation) bool {
	if math.Abs(evaluator.WordDeviation(ev.Report)) > c.cfg.RegenerateWordDeviation {
		return true
	}
	total := len(ev.Report)
	if total == 0 {
		return false
	}
	ratio := float64(len(ev.Report.Failing())) / float64(total)
	return ratio >= c.cfg.RepairMaxFailingRatio
}

func (c *Controller) budgetSpent(r *run) bool {
	if r.out.Iterations >= c.cfg.MaxIterations {
		return true
	}
	return c.cfg.TimeBudget > 0 && c.now().Sub(r.started) >= c.cfg.TimeBudget
}

func (c *Controller) transition(ctx context.Context, r *run, to State) {
	from := r.state
	if !CanTransition(from, to) && to != StateFailed {
		logger.Warn(ctx, "unexpected refinement transition", "from", from, "to", to)
	}
	r.state = to
	r.out.State = to
	r.out.Transitions = append(r.out.Transitions, Transition{From: from, To: to, At: c.now()})
	metrics.RefinementTransitions.WithLabelValues(string(from), string(to)).Inc()
	logger.Debug(ctx, "refinement transition", "from", from, "to", to, "iteration", r.out.Iterations)
}

func (c *Controller) clampTemperature(t float64) float64 {
	lo, hi := c.cfg.MinTemperature, c.cfg.MaxTemperature
	if hi <= lo {
		return t
	}
	return math.Min(math.Max(t, lo), hi)
}

func (c *Controller) maxTokens(req entity.GenerationRequest) int {
	if c.cfg.MaxTokensPerWord <= 0 || req.TargetWordCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(req.TargetWordCount) * c.cfg.MaxTokensPerWord))
}
