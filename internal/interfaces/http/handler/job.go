package handler

import (
	"github.com/gin-gonic/gin"

	"z-writer-ai-api/internal/domain/entity"
	"z-writer-ai-api/internal/interfaces/http/dto"
)

// JobHandler 任务处理器
type JobHandler struct {
	svc JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 获取指定任务的状态，完成后包含生成结果
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetJob(c.Request.Context(), userID(c), dto.BindJobID(c))
	if err != nil {
		fail(c, "failed to get job", err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}

// ListJobs 分页列出当前用户的任务
// @Summary 任务列表
// @Tags Jobs
// @Produce json
// @Param status query string false "状态过滤"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.JobListResponse]
// @Router /v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	page := dto.BindPage(c)
	status := entity.JobStatus(c.Query("status"))
	switch status {
	case "", entity.JobStatusPending, entity.JobStatusRunning, entity.JobStatusCompleted, entity.JobStatusFailed, entity.JobStatusCancelled:
	default:
		dto.BadRequest(c, "invalid status filter")
		return
	}

	res, err := h.svc.ListJobs(c.Request.Context(), userID(c), status, page.Pagination())
	if err != nil {
		fail(c, "failed to list jobs", err)
		return
	}
	dto.SuccessWithPage(c, dto.ToJobListResponse(res.Items), dto.NewPageMeta(res.Page, res.PageSize, int(res.Total)))
}

// CancelJob 取消任务
// @Summary 取消任务
// @Description 取消待执行或运行中的任务，运行中的任务在下一个状态边界停止
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [delete]
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.svc.CancelJob(c.Request.Context(), userID(c), dto.BindJobID(c))
	if err != nil {
		fail(c, "failed to cancel job", err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}
