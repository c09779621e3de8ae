package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-writer-ai-api/internal/config"
	wfmodel "z-writer-ai-api/internal/workflow/model"
	"z-writer-ai-api/internal/workflow/port"
)

func payload() wfmodel.PromptPayload {
	return wfmodel.PromptPayload{
		Workflow: "draft",
		Messages: []wfmodel.Message{
			{Role: wfmodel.RoleSystem, Content: "sys"},
			{Role: wfmodel.RoleUser, Content: "write"},
		},
	}
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	cases := map[int]error{
		400: port.ErrEngineRejected,
		401: port.ErrEngineRejected,
		422: port.ErrEngineRejected,
		408: port.ErrEngineUnavailable,
		409: port.ErrEngineUnavailable,
		429: port.ErrEngineUnavailable,
		500: port.ErrEngineUnavailable,
		503: port.ErrEngineUnavailable,
	}
	for status, want := range cases {
		err := classifyStatus(status, base)
		assert.ErrorIs(t, err, want, "status %d", status)
		assert.ErrorIs(t, err, base)
	}
}

func TestClassifyEinoError(t *testing.T) {
	assert.ErrorIs(t, classifyEinoError(context.DeadlineExceeded), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("error, status code: 429, rate limit reached")), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("status code: 400, invalid_request_error")), port.ErrEngineRejected)
	assert.ErrorIs(t, classifyEinoError(errors.New("flagged by content_policy")), port.ErrEngineRejected)
	assert.ErrorIs(t, classifyEinoError(errors.New("connection reset by peer")), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("error, status code: 503, status: 503 Service Unavailable")), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("error, status code: 403, status: 403 Forbidden")), port.ErrEngineRejected)

	// 状态码以外的数字不参与判断
	assert.ErrorIs(t, classifyEinoError(errors.New("dial tcp 10.0.0.4:8400: connection refused")), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("upstream returned 404 bytes before EOF")), port.ErrEngineUnavailable)
	assert.ErrorIs(t, classifyEinoError(errors.New("request 400401 failed: server closed")), port.ErrEngineUnavailable)
	assert.NoError(t, classifyEinoError(nil))
}

type fakeChatModel struct {
	out  *schema.Message
	err  error
	opts *model.Options
}

func (m *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.opts = model.GetCommonOptions(nil, opts...)
	return m.out, m.err
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func newFactory(m model.BaseChatModel) *EinoFactory {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{DefaultProvider: "openai"}})
	f.Register("openai", m)
	return f
}

func TestEinoEngine_Generate(t *testing.T) {
	out := schema.AssistantMessage("draft text", nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: "stop",
		Usage:        &schema.TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
	}
	cm := &fakeChatModel{out: out}
	e := NewEinoEngine(newFactory(cm), "openai", "gpt-4o-mini")

	comp, err := e.Generate(context.Background(), payload(), wfmodel.SamplingConfig{Temperature: 0.5, MaxTokens: 900})
	require.NoError(t, err)
	assert.Equal(t, "draft text", comp.Text)
	assert.Equal(t, "openai", comp.Provider)
	assert.Equal(t, "gpt-4o-mini", comp.Model)
	assert.Equal(t, 7, comp.Usage.TotalTokens)
	require.NotNil(t, cm.opts.MaxTokens)
	assert.Equal(t, 900, *cm.opts.MaxTokens)
}

func TestEinoEngine_Errors(t *testing.T) {
	cm := &fakeChatModel{err: errors.New("status code: 503, service unavailable")}
	e := NewEinoEngine(newFactory(cm), "openai", "m")
	_, err := e.Generate(context.Background(), payload(), wfmodel.SamplingConfig{})
	assert.ErrorIs(t, err, port.ErrEngineUnavailable)

	filtered := schema.AssistantMessage("", nil)
	filtered.ResponseMeta = &schema.ResponseMeta{FinishReason: "content_filter"}
	e = NewEinoEngine(newFactory(&fakeChatModel{out: filtered}), "openai", "m")
	_, err = e.Generate(context.Background(), payload(), wfmodel.SamplingConfig{})
	assert.ErrorIs(t, err, port.ErrEngineRejected)
}

func TestEinoFactory_DriverMismatch(t *testing.T) {
	f := NewEinoFactory(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "direct",
		Providers:       map[string]config.ProviderConfig{"direct": {Driver: DriverOpenAI, Model: "m"}},
	}})
	_, err := f.Get(context.Background(), "")
	require.Error(t, err)

	_, err = f.Get(context.Background(), "missing")
	require.Error(t, err)
}

func openAIServer(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if got != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEngine_Generate(t *testing.T) {
	var req map[string]any
	srv := openAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " ## Intro\nhello "}}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
	}`, &req)

	e, err := NewOpenAIEngine("openai-direct", config.ProviderConfig{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "gpt-test", MaxTokens: 500})
	require.NoError(t, err)

	comp, err := e.Generate(context.Background(), payload(), wfmodel.SamplingConfig{Temperature: 0.4, MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, "## Intro\nhello", comp.Text)
	assert.Equal(t, "stop", comp.FinishReason)
	assert.Equal(t, 12, comp.Usage.TotalTokens)
	assert.Equal(t, "openai-direct", comp.Provider)

	assert.Equal(t, "gpt-test", req["model"])
	assert.Equal(t, 0.4, req["temperature"])
	assert.Equal(t, float64(500), req["max_completion_tokens"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAIEngine_Errors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, port.ErrEngineRejected},
		{http.StatusTooManyRequests, port.ErrEngineUnavailable},
		{http.StatusInternalServerError, port.ErrEngineUnavailable},
	}
	for _, c := range cases {
		srv := openAIServer(t, c.status, `{"error": {"message": "nope", "type": "invalid_request_error"}}`, nil)
		e, err := NewOpenAIEngine("p", config.ProviderConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
		require.NoError(t, err)
		_, err = e.Generate(context.Background(), payload(), wfmodel.SamplingConfig{})
		assert.ErrorIs(t, err, c.want, "status %d", c.status)
	}

	_, err := NewOpenAIEngine("p", config.ProviderConfig{})
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "a",
		Providers: map[string]config.ProviderConfig{
			"a": {Model: "m"},
			"b": {Driver: DriverOpenAI, Model: "m"},
			"c": {Driver: "grpc", Model: "m"},
		},
	}}
	e, err := NewEngine(cfg, NewEinoFactory(cfg))
	require.NoError(t, err)
	assert.IsType(t, &EinoEngine{}, e)

	cfg.LLM.DefaultProvider = "b"
	e, err = NewEngine(cfg, NewEinoFactory(cfg))
	require.NoError(t, err)
	assert.IsType(t, &OpenAIEngine{}, e)

	cfg.LLM.DefaultProvider = "c"
	_, err = NewEngine(cfg, NewEinoFactory(cfg))
	assert.Error(t, err)

	cfg.LLM.DefaultProvider = "zzz"
	_, err = NewEngine(cfg, NewEinoFactory(cfg))
	assert.Error(t, err)
}
