// Package messaging 提供基于 Redis Streams 的任务队列和分析事件流
package messaging

import (
	"encoding/json"
	"time"

	"z-writer-ai-api/internal/domain/entity"
)

// 消息类型
const (
	TypeGenerationJob   = "generation_job"
	TypeGenerationEvent = "generation_event"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, userID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		UserID:    userID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamGenerationJobs      Stream = "stream:generation:jobs"
	StreamGenerationAnalytics Stream = "stream:analytics:generation"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const ConsumerGroupJobWorker ConsumerGroup = "cg-job-worker"

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重投前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}

// GenerationJobMessage 异步生成任务
type GenerationJobMessage struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
}

// GenerationEvent 一次生成交付后的分析事件
type GenerationEvent struct {
	RequestID        string            `json:"request_id"`
	UserID           string            `json:"user_id,omitempty"`
	JobID            string            `json:"job_id,omitempty"`
	Outcome          string            `json:"outcome"`
	ErrorCode        string            `json:"error_code,omitempty"`
	IterationCount   int               `json:"iteration_count"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	TokenUsage       entity.TokenUsage `json:"token_usage"`
	WordCount        int               `json:"word_count"`
	TargetWordCount  int               `json:"target_word_count"`
	Partial          bool              `json:"partial"`
	HumanizerEdits   int               `json:"humanizer_edits"`
	Provider         string            `json:"provider,omitempty"`
	Model            string            `json:"model,omitempty"`
	Credits          int               `json:"credits"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// NewGenerationEvent 由生成结果构造分析事件
func NewGenerationEvent(res *entity.GenerationResult, credits int) *GenerationEvent {
	outcome := "accepted"
	if res.Partial {
		outcome = "partial"
	}
	return &GenerationEvent{
		RequestID:        res.RequestID,
		UserID:           res.UserID,
		Outcome:          outcome,
		IterationCount:   res.IterationCount,
		ProcessingTimeMs: res.ProcessingTimeMs,
		TokenUsage:       res.TokenUsage,
		WordCount:        res.WordCount,
		TargetWordCount:  res.TargetWordCount,
		Partial:          res.Partial,
		HumanizerEdits:   res.HumanizerEdits,
		Provider:         res.Provider,
		Model:            res.Model,
		Credits:          credits,
		OccurredAt:       time.Now().UTC(),
	}
}
