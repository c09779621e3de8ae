// Package port 定义工作流层依赖的外部能力
package port

import (
	"context"
	"errors"
	"fmt"

	wfmodel "z-writer-ai-api/internal/workflow/model"
)

var (
	// ErrEngineUnavailable 引擎暂时不可用（网络、限流、5xx、超时），可重试
	ErrEngineUnavailable = errors.New("generation engine unavailable")
	// ErrEngineRejected 引擎拒绝请求（内容策略、参数错误），不可重试
	ErrEngineRejected = errors.New("generation engine rejected request")
)

// Engine 文本生成引擎
type Engine interface {
	Generate(ctx context.Context, payload wfmodel.PromptPayload, sampling wfmodel.SamplingConfig) (wfmodel.Completion, error)
}

// Unavailable 将 err 标记为可重试错误
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
}

// Rejected 将 err 标记为不可重试错误
func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrEngineRejected, err)
}
