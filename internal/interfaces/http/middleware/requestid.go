// Package middleware 提供 HTTP 中间件
package middleware

import (
	"regexp"

	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// ContextKeyRequestID gin.Context 中的请求 ID 键
	ContextKeyRequestID = "request_id"
)

// 请求 ID 会成为幂等键与 Redis 键的一部分，修订轮次还会追加后缀，
// 因此只接受有限字符集并限制在 96 个字符以内
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,96}$`)

// RequestID 请求 ID 注入中间件，非法的外部请求 ID 会被替换为新生成的 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !requestIDPattern.MatchString(requestID) {
			requestID = uuid.NewString()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}
