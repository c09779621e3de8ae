// Package router 提供 HTTP 路由配置
package router

import (
	"z-writer-ai-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	generationHandler *handler.GenerationHandler,
	jobHandler *handler.JobHandler,
) {
	// 生成
	generations := v1.Group("/generations")
	{
		generations.POST("", generationHandler.Generate)
		generations.POST("/async", generationHandler.SubmitAsync)
		generations.GET("/:rid", generationHandler.Get)
		generations.POST("/:rid/revisions", generationHandler.Revise)
	}

	// 异步任务
	jobs := v1.Group("/jobs")
	{
		jobs.GET("", jobHandler.ListJobs)
		jobs.GET("/:jid", jobHandler.GetJob)
		jobs.DELETE("/:jid", jobHandler.CancelJob)
	}
}
