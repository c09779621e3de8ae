// Package refine 实现生成-评估-修正的迭代控制状态机
package refine

import (
	"time"

	"z-writer-ai-api/internal/application/generation/evaluator"
	"z-writer-ai-api/internal/domain/entity"
)

// State 控制器状态
type State string

const (
	StateInit         State = "init"
	StateGenerating   State = "generating"
	StateEvaluating   State = "evaluating"
	StateRepairing    State = "repairing"
	StateRegenerating State = "regenerating"
	StateAccepted     State = "accepted"
	StateExhausted    State = "exhausted"
	StateFailed       State = "failed"
)

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateExhausted || s == StateFailed
}

// allowed 合法的状态迁移
var allowed = map[State][]State{
	StateInit:         {StateGenerating, StateFailed},
	StateGenerating:   {StateEvaluating, StateExhausted, StateFailed},
	StateEvaluating:   {StateAccepted, StateRepairing, StateRegenerating, StateExhausted, StateFailed},
	StateRepairing:    {StateGenerating, StateFailed},
	StateRegenerating: {StateGenerating, StateFailed},
	StateExhausted:    {StateAccepted},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition 一次状态迁移记录
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Outcome 控制器的运行结果。出错时仍会返回已累计的迭代次数与用量
type Outcome struct {
	State State
	Text  string
	// Evaluation 最终草稿的评估结果
	Evaluation evaluator.Evaluation
	// Iterations 成功完成的“生成+评估”次数
	Iterations int
	// EngineCalls 引擎调用次数（含瞬时失败后的重试）
	EngineCalls int
	Usage       entity.TokenUsage
	Provider    string
	Model       string
	// Partial 预算耗尽且硬约束未全部满足
	Partial     bool
	Transitions []Transition
}

// draft 一轮生成产出的草稿，只在控制器内部流转
type draft struct {
	text      string
	eval      evaluator.Evaluation
	iteration int
	provider  string
	model     string
}
