package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"z-writer-ai-api/pkg/errors"
	"z-writer-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery 捕获处理链中的 panic 并返回统一的 500 响应。
// http.ErrAbortHandler 原样抛出，交给 net/http 中断连接。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"method", c.Request.Method,
				"route", c.FullPath(),
				"user_id", c.GetString(ContextKeyUserID),
			)

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":       errors.CodeInternalError,
				"message":    "internal server error",
				"request_id": c.GetString(ContextKeyRequestID),
				"trace_id":   c.GetString("trace_id"),
			})
		}()

		c.Next()
	}
}
