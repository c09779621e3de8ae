package quota

import (
	"context"
	"fmt"
	"strings"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/domain/repository"
	"z-writer-ai-api/internal/domain/service"
)

// LLMUsageRecorder 将每次引擎调用的用量写入流水表
type LLMUsageRecorder struct {
	usageRepo repository.LLMUsageEventRepository
}

func NewLLMUsageRecorder(usageRepo repository.LLMUsageEventRepository) *LLMUsageRecorder {
	return &LLMUsageRecorder{usageRepo: usageRepo}
}

func (r *LLMUsageRecorder) Record(ctx context.Context, in service.LLMUsageInput) error {
	if r == nil || r.usageRepo == nil {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	evt := &entity.LLMUsageEvent{
		UserID:           strings.TrimSpace(in.UserID),
		RequestID:        strings.TrimSpace(in.RequestID),
		Provider:         strings.TrimSpace(in.Provider),
		Model:            strings.TrimSpace(in.Model),
		Workflow:         strings.TrimSpace(in.Workflow),
		TokensPrompt:     in.PromptTokens,
		TokensCompletion: in.CompletionTokens,
		DurationMs:       in.DurationMs,
	}
	if err := r.usageRepo.Create(ctx, evt); err != nil {
		return fmt.Errorf("record llm usage: %w", err)
	}
	return nil
}
