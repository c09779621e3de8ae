package dto

import (
	"sort"
	"time"

	"z-writer-ai-api/internal/application/generation/brief"
	"z-writer-ai-api/internal/domain/entity"
)

// KeywordRequest 关键词要求
type KeywordRequest struct {
	Keyword        string `json:"keyword"`
	MinOccurrences int    `json:"minOccurrences"`
}

// SourceRequest 引用来源，label 与 url 至少提供一个
type SourceRequest struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	Priority int    `json:"priority"`
}

// HumanizationRatesRequest 拟人化比率，单位为百分比，超出 [0, 5] 的值会被截断
type HumanizationRatesRequest struct {
	Typos           float64 `json:"typos"`
	GrammarMistakes float64 `json:"grammarMistakes"`
	MiscErrors      float64 `json:"miscErrors"`
}

// GenerateRequest 生成请求体。请求 ID 优先取 Idempotency-Key 头。
// 这里不做字段级校验，缺失或越界的字段由需求规范化统一报告字段名。
type GenerateRequest struct {
	RequestID string `json:"requestId"`

	ContentType    string `json:"contentType"`
	Prompt         string `json:"prompt"`
	Tone           string `json:"tone"`
	WritingStyle   string `json:"writingStyle"`
	BrandArchetype string `json:"brandArchetype"`
	GradeLevel     string `json:"gradeLevel"`

	TargetWordCount  int              `json:"targetWordCount"`
	KeywordFrequency bool             `json:"keywordFrequency"`
	RequiredKeywords []KeywordRequest `json:"requiredKeywords"`
	RequiredSections []string         `json:"requiredSections"`

	IncludeCitations bool            `json:"includeCitations"`
	RequiredSources  []SourceRequest `json:"requiredSources"`

	AntiAIDetection   bool                     `json:"antiAIDetection"`
	HumanizationRates HumanizationRatesRequest `json:"humanizationRates"`

	LanguageVariant string `json:"languageVariant"`
	RevisionRounds  int    `json:"revisionRounds"`
}

// ToRawBrief 转换为待规范化的原始需求
func (r *GenerateRequest) ToRawBrief(userID, requestID string) brief.RawBrief {
	raw := brief.RawBrief{
		RequestID:        requestID,
		UserID:           userID,
		ContentType:      r.ContentType,
		Prompt:           r.Prompt,
		Tone:             r.Tone,
		WritingStyle:     r.WritingStyle,
		BrandArchetype:   r.BrandArchetype,
		GradeLevel:       r.GradeLevel,
		TargetWordCount:  r.TargetWordCount,
		KeywordFrequency: r.KeywordFrequency,
		RequiredSections: r.RequiredSections,
		IncludeCitations: r.IncludeCitations,
		AntiAIDetection:  r.AntiAIDetection,
		HumanizationRates: brief.RawRates{
			Typos:           r.HumanizationRates.Typos,
			GrammarMistakes: r.HumanizationRates.GrammarMistakes,
			MiscErrors:      r.HumanizationRates.MiscErrors,
		},
		LanguageVariant: r.LanguageVariant,
		RevisionRounds:  r.RevisionRounds,
	}
	for _, k := range r.RequiredKeywords {
		raw.RequiredKeywords = append(raw.RequiredKeywords, brief.RawKeyword{Keyword: k.Keyword, MinOccurrences: k.MinOccurrences})
	}
	for _, s := range r.RequiredSources {
		raw.RequiredSources = append(raw.RequiredSources, brief.RawSource{Label: s.Label, URL: s.URL, Priority: s.Priority})
	}
	return raw
}

// RevisionRequest 修订请求体
type RevisionRequest struct {
	Comment   string `json:"comment" binding:"required"`
	RequestID string `json:"requestId"`
}

// ConstraintResponse 单项约束评估结果
type ConstraintResponse struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Hard     bool    `json:"hard"`
	Distance float64 `json:"distance"`
	Detail   string  `json:"detail,omitempty"`
}

// TokenUsageResponse Token 用量
type TokenUsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationResponse 生成结果
type GenerationResponse struct {
	RequestID        string               `json:"request_id"`
	Text             string               `json:"text"`
	WordCount        int                  `json:"word_count"`
	TargetWordCount  int                  `json:"target_word_count"`
	IterationCount   int                  `json:"iteration_count"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
	TokenUsage       TokenUsageResponse   `json:"token_usage"`
	Partial          bool                 `json:"partial"`
	Constraints      []ConstraintResponse `json:"constraints,omitempty"`
	Humanized        bool                 `json:"humanized"`
	HumanizerEdits   int                  `json:"humanizer_edits,omitempty"`
	Provider         string               `json:"provider,omitempty"`
	Model            string               `json:"model,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// ToGenerationResponse 将领域结果转换为响应 DTO，约束按名称排序
func ToGenerationResponse(r *entity.GenerationResult) *GenerationResponse {
	if r == nil {
		return nil
	}
	resp := &GenerationResponse{
		RequestID:        r.RequestID,
		Text:             r.Text,
		WordCount:        r.WordCount,
		TargetWordCount:  r.TargetWordCount,
		IterationCount:   r.IterationCount,
		ProcessingTimeMs: r.ProcessingTimeMs,
		TokenUsage: TokenUsageResponse{
			PromptTokens:     r.TokenUsage.PromptTokens,
			CompletionTokens: r.TokenUsage.CompletionTokens,
			TotalTokens:      r.TokenUsage.TotalTokens,
		},
		Partial:        r.Partial,
		Humanized:      r.Humanized,
		HumanizerEdits: r.HumanizerEdits,
		Provider:       r.Provider,
		Model:          r.Model,
		CreatedAt:      r.CreatedAt,
	}
	for name, o := range r.Report {
		resp.Constraints = append(resp.Constraints, ConstraintResponse{
			Name:     name,
			Passed:   o.Passed,
			Hard:     o.Hard,
			Distance: o.Distance,
			Detail:   o.Detail,
		})
	}
	sort.Slice(resp.Constraints, func(i, j int) bool {
		return resp.Constraints[i].Name < resp.Constraints[j].Name
	})
	return resp
}
