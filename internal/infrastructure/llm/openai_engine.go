package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/internal/domain/entity"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
	"z-writer-ai-api/pkg/metrics"
)

// OpenAIEngine 直接使用官方 openai-go SDK 调用 Chat Completions。
// SDK 自带重试已关闭，重试由控制器统一负责。
type OpenAIEngine struct {
	client    openaisdk.Client
	provider  string
	model     string
	maxTokens int
}

func NewOpenAIEngine(provider string, cfg config.ProviderConfig) (*OpenAIEngine, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIEngine{
		client:    openaisdk.NewClient(opts...),
		provider:  provider,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (e *OpenAIEngine) Generate(ctx context.Context, payload wfmodel.PromptPayload, sampling wfmodel.SamplingConfig) (wfmodel.Completion, error) {
	if len(payload.Messages) == 0 {
		return wfmodel.Completion{}, port.Rejected(errors.New("prompt payload is empty"))
	}

	modelName := e.model
	if sampling.Model != "" {
		modelName = sampling.Model
	}
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(modelName),
		Messages:    toOpenAIMessages(payload),
		Temperature: openaisdk.Float(sampling.Temperature),
	}
	if n := e.tokenLimit(sampling); n > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(n))
	}

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, params)
	metrics.LLMCallDuration.WithLabelValues(e.provider, modelName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(e.provider, modelName, "error").Inc()
		return wfmodel.Completion{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMCallTotal.WithLabelValues(e.provider, modelName, "error").Inc()
		return wfmodel.Completion{}, port.Unavailable(errors.New("openai: empty choices"))
	}
	metrics.LLMCallTotal.WithLabelValues(e.provider, modelName, "success").Inc()

	usage := entity.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	metrics.LLMTokensUsed.WithLabelValues(e.provider, modelName, "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(e.provider, modelName, "completion").Add(float64(usage.CompletionTokens))

	choice := resp.Choices[0]
	comp := wfmodel.Completion{
		Text:         strings.TrimSpace(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Provider:     e.provider,
		Model:        modelName,
		Usage:        usage,
	}
	if resp.Model != "" {
		comp.Model = resp.Model
	}
	if comp.FinishReason == finishContentFilter {
		return comp, port.Rejected(errors.New("output blocked by content filter"))
	}
	return comp, nil
}

func (e *OpenAIEngine) tokenLimit(s wfmodel.SamplingConfig) int {
	n := s.MaxTokens
	if e.maxTokens > 0 && (n <= 0 || n > e.maxTokens) {
		n = e.maxTokens
	}
	return n
}

func toOpenAIMessages(payload wfmodel.PromptPayload) []openaisdk.ChatCompletionMessageParamUnion {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		switch m.Role {
		case wfmodel.RoleSystem:
			msgs = append(msgs, openaisdk.SystemMessage(m.Content))
		case wfmodel.RoleAssistant:
			msgs = append(msgs, openaisdk.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openaisdk.UserMessage(m.Content))
		}
	}
	return msgs
}
