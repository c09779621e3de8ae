package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-writer-ai-api/internal/config"
	"z-writer-ai-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client    *redis.Client
	maxLen    int64
	jobs      Stream
	analytics Stream
}

// NewProducer 创建消息生产者，流名称为空时使用默认值
func NewProducer(client *redis.Client, cfg *config.RedisStreamConfig) *Producer {
	p := &Producer{
		client:    client,
		maxLen:    int64(cfg.MaxLen),
		jobs:      StreamGenerationJobs,
		analytics: StreamGenerationAnalytics,
	}
	if p.maxLen <= 0 {
		p.maxLen = 100000
	}
	if cfg.JobStream != "" {
		p.jobs = Stream(cfg.JobStream)
	}
	if cfg.AnalyticsStream != "" {
		p.analytics = Stream(cfg.AnalyticsStream)
	}
	return p
}

// JobStream 任务流名称
func (p *Producer) JobStream() Stream {
	return p.jobs
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishGenerationJob 发布异步生成任务
func (p *Producer) PublishGenerationJob(ctx context.Context, job *GenerationJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, TypeGenerationJob, job.UserID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("request_id", job.RequestID)
	msg.SetMetadata("job_id", job.JobID)
	return p.Publish(ctx, p.jobs, msg)
}

// PublishGenerationEvent 发布分析事件，失败只记录日志
func (p *Producer) PublishGenerationEvent(ctx context.Context, event *GenerationEvent) {
	msg, err := NewMessage(event.RequestID, TypeGenerationEvent, event.UserID, event)
	if err == nil {
		msg.SetMetadata("request_id", event.RequestID)
		_, err = p.Publish(ctx, p.analytics, msg)
	}
	if err != nil {
		logger.Warn(ctx, "failed to publish generation event",
			"request_id", event.RequestID,
			"error", err.Error(),
		)
	}
}
