package entity

import (
	"sort"
	"strings"
	"time"
)

// 约束名
const (
	ConstraintWordCount    = "word_count"
	ConstraintSections     = "sections"
	ConstraintReadingLevel = "reading_level"
	ConstraintCitations    = "citations"

	keywordConstraintPrefix = "keyword:"
)

// KeywordConstraint 关键词约束名，关键词统一小写
func KeywordConstraint(keyword string) string {
	return keywordConstraintPrefix + strings.ToLower(keyword)
}

// KeywordOf 从约束名中取出关键词，非关键词约束返回 false
func KeywordOf(name string) (string, bool) {
	if !strings.HasPrefix(name, keywordConstraintPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, keywordConstraintPrefix), true
}

// ConstraintKind 约束类别，关键词约束统一为 keyword
func ConstraintKind(name string) string {
	if _, ok := KeywordOf(name); ok {
		return "keyword"
	}
	return name
}

// TokenUsage Token 用量
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add 累加用量
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// ConstraintOutcome 单项约束的评估结果
type ConstraintOutcome struct {
	Passed bool `json:"passed"`
	// Distance 与目标的带符号距离，满足时为零或负数（字数为相对偏差）
	Distance float64 `json:"distance"`
	// Hard 是否为硬约束
	Hard   bool   `json:"hard"`
	Detail string `json:"detail,omitempty"`
}

// ConstraintReport 约束名到评估结果
type ConstraintReport map[string]ConstraintOutcome

// Passed 全部约束通过
func (r ConstraintReport) Passed() bool {
	for _, o := range r {
		if !o.Passed {
			return false
		}
	}
	return true
}

// HardPassed 全部硬约束通过
func (r ConstraintReport) HardPassed() bool {
	for _, o := range r {
		if o.Hard && !o.Passed {
			return false
		}
	}
	return true
}

// Failing 未通过的约束名，按字典序
func (r ConstraintReport) Failing() []string {
	var out []string
	for name, o := range r {
		if !o.Passed {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Clone 复制报告
func (r ConstraintReport) Clone() ConstraintReport {
	if r == nil {
		return nil
	}
	cp := make(ConstraintReport, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// GenerationResult 返回给调用方的生成结果，创建后不再修改
type GenerationResult struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`

	Text             string     `json:"text"`
	WordCount        int        `json:"word_count"`
	TargetWordCount  int        `json:"target_word_count"`
	IterationCount   int        `json:"iteration_count"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	TokenUsage       TokenUsage `json:"token_usage"`

	// Partial 迭代预算耗尽仍未满足全部硬约束
	Partial bool             `json:"partial"`
	Report  ConstraintReport `json:"constraint_report,omitempty"`

	Humanized      bool `json:"humanized"`
	HumanizerEdits int  `json:"humanizer_edits,omitempty"`

	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Delivery 已交付的生成结果及其规范化需求，修订时据此重建请求
type Delivery struct {
	Request GenerationRequest `json:"request"`
	Result  GenerationResult  `json:"result"`
}
