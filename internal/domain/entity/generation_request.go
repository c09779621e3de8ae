// Package entity 定义领域实体
package entity

import "strings"

// GradeLevel 目标阅读等级，四档
type GradeLevel string

const (
	GradeElementary   GradeLevel = "elementary"
	GradeMiddleSchool GradeLevel = "middle_school"
	GradeHighSchool   GradeLevel = "high_school"
	GradeCollege      GradeLevel = "college"
)

// gradeRanks 阅读等级的序号，用于判断是否相邻
var gradeRanks = map[GradeLevel]int{
	GradeElementary:   0,
	GradeMiddleSchool: 1,
	GradeHighSchool:   2,
	GradeCollege:      3,
}

// Rank 返回等级序号，未知等级返回 -1
func (g GradeLevel) Rank() int {
	if r, ok := gradeRanks[g]; ok {
		return r
	}
	return -1
}

// Valid 是否为已知等级
func (g GradeLevel) Valid() bool {
	return g.Rank() >= 0
}

// LanguageVariant 英语变体
type LanguageVariant string

const (
	LanguageUS LanguageVariant = "US"
	LanguageUK LanguageVariant = "UK"
)

// KeywordRequirement 关键词及最少出现次数
type KeywordRequirement struct {
	Keyword        string `json:"keyword"`
	MinOccurrences int    `json:"min_occurrences"`
}

// Source 需要引用的来源
type Source struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	Priority int    `json:"priority"`
}

// HumanizationRates 拟人化比率，单位为百分比，取值 [0, 5]
type HumanizationRates struct {
	Typos           float64 `json:"typos"`
	GrammarMistakes float64 `json:"grammar_mistakes"`
	MiscErrors      float64 `json:"misc_errors"`
}

// Any 是否有任一比率大于零
func (r HumanizationRates) Any() bool {
	return r.Typos > 0 || r.GrammarMistakes > 0 || r.MiscErrors > 0
}

// GenerationRequest 规范化后的生成需求。
// 只能由 brief.Normalizer 构造，之后按值传递且不再修改；需要改动时由调用方复制。
type GenerationRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`

	ContentType    string     `json:"content_type"`
	Prompt         string     `json:"prompt"`
	Tone           string     `json:"tone"`
	WritingStyle   string     `json:"writing_style"`
	BrandArchetype string     `json:"brand_archetype,omitempty"`
	GradeLevel     GradeLevel `json:"grade_level"`

	TargetWordCount  int                  `json:"target_word_count"`
	RequiredKeywords []KeywordRequirement `json:"required_keywords,omitempty"`
	RequiredSections []string             `json:"required_sections,omitempty"`

	IncludeCitations bool     `json:"include_citations"`
	RequiredSources  []Source `json:"required_sources,omitempty"`

	AntiAIDetection   bool              `json:"anti_ai_detection"`
	HumanizationRates HumanizationRates `json:"humanization_rates"`

	LanguageVariant LanguageVariant `json:"language_variant"`
	RevisionRounds  int             `json:"revision_rounds"`
	// RevisionOf 修订链的根请求 ID，原始请求为空；修订次数始终按根请求计
	RevisionOf string `json:"revision_of,omitempty"`
}

// RootRequestID 修订链的根请求 ID
func (r GenerationRequest) RootRequestID() string {
	if r.RevisionOf != "" {
		return r.RevisionOf
	}
	return r.RequestID
}

// Clone 深拷贝，切片不与原值共享底层数组
func (r GenerationRequest) Clone() GenerationRequest {
	cp := r
	cp.RequiredKeywords = append([]KeywordRequirement(nil), r.RequiredKeywords...)
	cp.RequiredSections = append([]string(nil), r.RequiredSections...)
	cp.RequiredSources = append([]Source(nil), r.RequiredSources...)
	return cp
}

// KeywordTerms 返回小写关键词列表
func (r GenerationRequest) KeywordTerms() []string {
	out := make([]string, 0, len(r.RequiredKeywords))
	for _, k := range r.RequiredKeywords {
		out = append(out, strings.ToLower(k.Keyword))
	}
	return out
}
