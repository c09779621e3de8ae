// Package chain 将提示词载荷交给 eino ChatModel 执行
package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"z-writer-ai-api/internal/domain/entity"
	llmctx "z-writer-ai-api/internal/domain/service"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	workflowport "z-writer-ai-api/internal/workflow/port"
)

// DraftChain 通过 ChatModelFactory 获取指定 provider 的模型并生成一次草稿
type DraftChain struct {
	factory  workflowport.ChatModelFactory
	provider string
}

func NewDraftChain(factory workflowport.ChatModelFactory, provider string) *DraftChain {
	return &DraftChain{factory: factory, provider: strings.TrimSpace(provider)}
}

// Invoke 返回原始 eino 消息，错误不做分类
func (c *DraftChain) Invoke(ctx context.Context, payload wfmodel.PromptPayload, sampling wfmodel.SamplingConfig) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if len(payload.Messages) == 0 {
		return nil, fmt.Errorf("prompt payload is empty")
	}

	ctx = llmctx.WithProvider(llmctx.WithWorkflow(ctx, payload.Workflow), c.provider)
	chatModel, err := c.factory.Get(ctx, c.provider)
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, ToSchemaMessages(payload), buildModelOptions(sampling)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

// ToSchemaMessages 转换为 eino 消息
func ToSchemaMessages(payload wfmodel.PromptPayload) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		switch m.Role {
		case wfmodel.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		case wfmodel.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(m.Content))
		}
	}
	return msgs
}

// CompletionFromMessage 提取正文、结束原因与用量
func CompletionFromMessage(msg *schema.Message) wfmodel.Completion {
	out := wfmodel.Completion{Text: strings.TrimSpace(msg.Content)}
	if msg.ResponseMeta != nil {
		out.FinishReason = msg.ResponseMeta.FinishReason
		if u := msg.ResponseMeta.Usage; u != nil {
			out.Usage = entity.TokenUsage{
				PromptTokens:     u.PromptTokens,
				CompletionTokens: u.CompletionTokens,
				TotalTokens:      u.TotalTokens,
			}
		}
	}
	return out
}

func buildModelOptions(s wfmodel.SamplingConfig) []model.Option {
	opts := make([]model.Option, 0, 3)
	opts = append(opts, model.WithTemperature(float32(s.Temperature)))
	if s.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(s.MaxTokens))
	}
	if m := strings.TrimSpace(s.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	return opts
}
