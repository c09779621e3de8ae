package llm

import (
	"context"
	"errors"
	"strings"

	"z-writer-ai-api/internal/workflow/chain"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
)

// EinoEngine 通过 eino ChatModel 生成，调用指标由全局 callbacks 记录
type EinoEngine struct {
	chain    *chain.DraftChain
	provider string
	model    string
}

func NewEinoEngine(factory port.ChatModelFactory, provider, modelName string) *EinoEngine {
	return &EinoEngine{
		chain:    chain.NewDraftChain(factory, provider),
		provider: strings.TrimSpace(provider),
		model:    strings.TrimSpace(modelName),
	}
}

func (e *EinoEngine) Generate(ctx context.Context, payload wfmodel.PromptPayload, sampling wfmodel.SamplingConfig) (wfmodel.Completion, error) {
	msg, err := e.chain.Invoke(ctx, payload, sampling)
	if err != nil {
		return wfmodel.Completion{}, classifyEinoError(err)
	}

	comp := chain.CompletionFromMessage(msg)
	comp.Provider = e.provider
	comp.Model = e.model
	if sampling.Model != "" {
		comp.Model = sampling.Model
	}
	if comp.FinishReason == finishContentFilter {
		return comp, port.Rejected(errors.New("output blocked by content filter"))
	}
	return comp, nil
}
