package eino

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
)

func TestElapsedSeconds(t *testing.T) {
	assert.Zero(t, elapsedSeconds(context.Background()))

	ctx := context.WithValue(context.Background(), startTimeKey{}, time.Now().Add(-2*time.Second))
	assert.GreaterOrEqual(t, elapsedSeconds(ctx), 2.0)
}

func TestModelName(t *testing.T) {
	assert.Empty(t, modelNameFromInput(nil))
	assert.Equal(t, "gpt", modelNameFromInput(&model.CallbackInput{Config: &model.Config{Model: "gpt"}}))
	assert.Equal(t, "gpt", modelNameFromOutput(&model.CallbackOutput{Config: &model.Config{Model: "gpt"}}))
}

func TestChatModelHandler_Lifecycle(t *testing.T) {
	h := newChatModelCallbackHandler()

	ctx := h.OnStart(context.Background(), nil, &model.CallbackInput{Config: &model.Config{Model: "gpt"}})
	_, ok := ctx.Value(startTimeKey{}).(time.Time)
	assert.True(t, ok)

	assert.NotPanics(t, func() {
		h.OnEnd(ctx, nil, &model.CallbackOutput{Config: &model.Config{Model: "gpt"}, TokenUsage: &model.TokenUsage{PromptTokens: 1, CompletionTokens: 2}})
		h.OnError(ctx, nil, errors.New("boom"))
	})
	Init()
	Init()
}
