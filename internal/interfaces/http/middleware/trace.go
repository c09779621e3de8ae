package middleware

import (
	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把 trace_id/span_id 写入日志上下文，并把请求 ID 与用户标记到 span 上。
// 需挂在 RequestID 与 Trace 之后。
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		sc := span.SpanContext()
		if !sc.IsValid() {
			c.Next()
			return
		}

		traceID := sc.TraceID().String()
		c.Set("trace_id", traceID)
		c.Set("span_id", sc.SpanID().String())

		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)

		if rid := c.GetString(ContextKeyRequestID); rid != "" {
			span.SetAttributes(attribute.String("request_id", rid))
		}

		c.Next()

		// 鉴权在路由组内执行，用户 ID 只能在下游处理完成后读取
		if uid := c.GetString(ContextKeyUserID); uid != "" {
			span.SetAttributes(attribute.String("user_id", uid))
		}
	}
}
