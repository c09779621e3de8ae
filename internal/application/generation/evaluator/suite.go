package evaluator

import (
	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

// Config 评估配置
type Config struct {
	WordCountTolerance float64
	// SoftConstraints 软约束类别，预算耗尽时不影响最优草稿被接受
	SoftConstraints []string
	// Weights 各约束类别的惩罚权重，缺省为 1
	Weights map[string]float64
}

// DefaultConfig 默认评估配置
func DefaultConfig() Config {
	return Config{
		WordCountTolerance: 0.10,
		SoftConstraints:    []string{entity.ConstraintReadingLevel, entity.ConstraintCitations},
		Weights: map[string]float64{
			entity.ConstraintWordCount:    3,
			"keyword":                     2,
			entity.ConstraintSections:     2,
			entity.ConstraintReadingLevel: 1,
			entity.ConstraintCitations:    1,
		},
	}
}

// Evaluation 一次评估的结果
type Evaluation struct {
	Report    entity.ConstraintReport
	WordCount int
	// Penalty 未满足约束的加权惩罚之和，全部通过时为 0
	Penalty float64
}

// Suite 按顺序运行一组评估器
type Suite struct {
	evaluators []Evaluator
	soft       map[string]bool
	weights    map[string]float64
}

// NewSuite 使用默认的五类评估器
func NewSuite(cfg Config) *Suite {
	return NewSuiteWith(cfg,
		WordCount{Tolerance: cfg.WordCountTolerance},
		Keywords{},
		Sections{},
		ReadingLevel{},
		Citations{},
	)
}

// NewSuiteWith 使用自定义评估器
func NewSuiteWith(cfg Config, evaluators ...Evaluator) *Suite {
	soft := make(map[string]bool, len(cfg.SoftConstraints))
	for _, k := range cfg.SoftConstraints {
		soft[k] = true
	}
	return &Suite{evaluators: evaluators, soft: soft, weights: cfg.Weights}
}

// Evaluate 评估草稿，纯函数
func (s *Suite) Evaluate(text string, req entity.GenerationRequest) Evaluation {
	ev := Evaluation{
		Report:    make(entity.ConstraintReport),
		WordCount: textutil.CountWords(text),
	}
	for _, e := range s.evaluators {
		kind := e.Kind()
		for _, c := range e.Evaluate(text, req) {
			c.Outcome.Hard = !s.soft[kind]
			ev.Report[c.Name] = c.Outcome
			ev.Penalty += s.weight(kind) * c.Penalty
		}
	}
	return ev
}

// IsHard 约束类别是否为硬约束
func (s *Suite) IsHard(kind string) bool {
	return !s.soft[kind]
}

func (s *Suite) weight(kind string) float64 {
	if w, ok := s.weights[kind]; ok {
		return w
	}
	return 1
}

// rank 平局时的字典序优先级：字数通过、关键词通过数、章节通过、阅读等级通过
type rank [4]int

func rankOf(r entity.ConstraintReport) rank {
	var out rank
	out[0] = passedInt(r, entity.ConstraintWordCount)
	for name, o := range r {
		if _, ok := entity.KeywordOf(name); ok && o.Passed {
			out[1]++
		}
	}
	out[2] = passedInt(r, entity.ConstraintSections)
	out[3] = passedInt(r, entity.ConstraintReadingLevel)
	return out
}

// passedInt 约束不存在视为通过
func passedInt(r entity.ConstraintReport, name string) int {
	o, ok := r[name]
	if !ok || o.Passed {
		return 1
	}
	return 0
}

const penaltyEpsilon = 1e-9

// Better 判断 a 是否优于 b：惩罚更低者优先，相同则按字典序优先级比较。完全相同时返回 false，保留较早的草稿
func Better(a, b Evaluation) bool {
	if d := a.Penalty - b.Penalty; d < -penaltyEpsilon {
		return true
	} else if d > penaltyEpsilon {
		return false
	}
	ra, rb := rankOf(a.Report), rankOf(b.Report)
	for i := range ra {
		if ra[i] != rb[i] {
			return ra[i] > rb[i]
		}
	}
	return false
}

// WordDeviation 报告中的字数相对偏差
func WordDeviation(r entity.ConstraintReport) float64 {
	return r[entity.ConstraintWordCount].Distance
}
