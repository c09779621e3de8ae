package service

import "context"

// LLMUsageInput 一次引擎调用的可计费与可观测数据
type LLMUsageInput struct {
	UserID    string
	RequestID string

	Workflow string
	Provider string
	Model    string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int
}

// LLMUsageRecorder 记录引擎用量。实现应为 best-effort，不阻塞生成流程
type LLMUsageRecorder interface {
	Record(ctx context.Context, in LLMUsageInput) error
}
