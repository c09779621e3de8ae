// Package service 定义跨层的服务契约
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyUser     llmCtxKey = "llm_user"
	llmCtxKeyRequest  llmCtxKey = "llm_request"
)

// 调用引擎的工作流名
const (
	WorkflowDraft    = "draft"
	WorkflowRepair   = "repair"
	WorkflowRevision = "revision"
)

func withValue(ctx context.Context, key llmCtxKey, v string) context.Context {
	v = strings.TrimSpace(v)
	if ctx == nil || v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueOr(ctx context.Context, key llmCtxKey, def string) string {
	if ctx == nil {
		return def
	}
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s
	}
	return def
}

// WithWorkflow 标记当前引擎调用所属的工作流
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withValue(ctx, llmCtxKeyWorkflow, workflow)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

// WithRequest 标记调用归属的用户与请求，用于用量流水
func WithRequest(ctx context.Context, userID, requestID string) context.Context {
	return withValue(withValue(ctx, llmCtxKeyUser, userID), llmCtxKeyRequest, requestID)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyWorkflow, "unknown")
}

func ProviderFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyProvider, "unknown")
}

func UserFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyUser, "")
}

func RequestFromContext(ctx context.Context) string {
	return valueOr(ctx, llmCtxKeyRequest, "")
}
