// Package evaluator 按约束类别评估草稿，所有评估器均为纯函数
package evaluator

import (
	"math"

	"z-writer-ai-api/internal/application/generation/textutil"
	"z-writer-ai-api/internal/domain/entity"
)

// Check 单项约束的检查结果
type Check struct {
	Name    string
	Outcome entity.ConstraintOutcome
	// Penalty 归一化后的未满足程度，通过时为 0
	Penalty float64
}

// Evaluator 一类约束的评估器。新增约束类别只需实现该接口并注册到 Suite
type Evaluator interface {
	// Kind 约束类别，用于权重与软硬约束配置
	Kind() string
	// Evaluate 返回该类别下的全部检查；不适用于该需求时返回空
	Evaluate(text string, req entity.GenerationRequest) []Check
}

// WordCount 字数约束：|actual-target|/target <= tolerance
type WordCount struct {
	Tolerance float64
}

func (WordCount) Kind() string { return entity.ConstraintWordCount }

func (e WordCount) Evaluate(text string, req entity.GenerationRequest) []Check {
	if req.TargetWordCount <= 0 {
		return nil
	}
	actual := textutil.CountWords(text)
	dev := float64(actual-req.TargetWordCount) / float64(req.TargetWordCount)
	passed := math.Abs(dev) <= e.Tolerance+1e-9

	c := Check{
		Name: entity.ConstraintWordCount,
		Outcome: entity.ConstraintOutcome{
			Passed:   passed,
			Distance: dev,
			Detail:   detailf("actual=%d target=%d", actual, req.TargetWordCount),
		},
	}
	if !passed {
		c.Penalty = math.Abs(dev) / math.Max(e.Tolerance, 0.01)
	}
	return []Check{c}
}

// Keywords 关键词出现次数约束，大小写不敏感的子串计数
type Keywords struct{}

func (Keywords) Kind() string { return "keyword" }

func (Keywords) Evaluate(text string, req entity.GenerationRequest) []Check {
	checks := make([]Check, 0, len(req.RequiredKeywords))
	for _, k := range req.RequiredKeywords {
		actual := textutil.CountOccurrences(text, k.Keyword)
		missing := k.MinOccurrences - actual
		c := Check{
			Name: entity.KeywordConstraint(k.Keyword),
			Outcome: entity.ConstraintOutcome{
				Passed:   missing <= 0,
				Distance: float64(missing),
				Detail:   detailf("actual=%d min=%d", actual, k.MinOccurrences),
			},
		}
		if missing > 0 {
			c.Penalty = float64(missing) / float64(k.MinOccurrences)
		}
		checks = append(checks, c)
	}
	return checks
}

// ReadingLevel 阅读等级约束：Flesch–Kincaid 分数映射到四档，与目标同档或相邻即通过
type ReadingLevel struct{}

func (ReadingLevel) Kind() string { return entity.ConstraintReadingLevel }

func (ReadingLevel) Evaluate(text string, req entity.GenerationRequest) []Check {
	target := req.GradeLevel.Rank()
	if target < 0 {
		return nil
	}
	score := textutil.FleschKincaidGrade(text)
	measured := GradeBucket(score)
	diff := measured.Rank() - target
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	c := Check{
		Name: entity.ConstraintReadingLevel,
		Outcome: entity.ConstraintOutcome{
			Passed:   abs <= 1,
			Distance: float64(diff),
			Detail:   detailf("grade=%.1f measured=%s target=%s", score, measured, req.GradeLevel),
		},
	}
	if abs > 1 {
		c.Penalty = float64(abs - 1)
	}
	return []Check{c}
}

// GradeBucket 年级分数对应的阅读等级
func GradeBucket(score float64) entity.GradeLevel {
	switch {
	case score < 6:
		return entity.GradeElementary
	case score < 9:
		return entity.GradeMiddleSchool
	case score < 13:
		return entity.GradeHighSchool
	default:
		return entity.GradeCollege
	}
}
