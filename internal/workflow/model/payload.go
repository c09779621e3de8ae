// Package model 定义工作流层与生成引擎之间传递的数据
package model

import (
	"strings"

	"z-writer-ai-api/internal/domain/entity"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 一条对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PromptPayload 发送给生成引擎的完整指令，由编译器确定性生成
type PromptPayload struct {
	// Workflow draft / repair / revision
	Workflow string    `json:"workflow"`
	Messages []Message `json:"messages"`
}

// Clone 深拷贝
func (p PromptPayload) Clone() PromptPayload {
	cp := p
	cp.Messages = append([]Message(nil), p.Messages...)
	return cp
}

// String 便于日志与测试比较的文本形式
func (p PromptPayload) String() string {
	var b strings.Builder
	for i, m := range p.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[")
		b.WriteString(string(m.Role))
		b.WriteString("]\n")
		b.WriteString(m.Content)
	}
	return b.String()
}

// SamplingConfig 采样参数
type SamplingConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Model       string  `json:"model,omitempty"`
}

// Completion 一次引擎调用的产出
type Completion struct {
	Text         string            `json:"text"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Usage        entity.TokenUsage `json:"usage"`
}
