package handler

import (
	"github.com/gin-gonic/gin"

	"z-writer-ai-api/internal/application/generation"
	"z-writer-ai-api/internal/interfaces/http/dto"
)

// GenerationHandler 生成处理器
type GenerationHandler struct {
	svc GenerationService
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(svc GenerationService) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

// Generate 同步生成
// @Summary 同步生成
// @Description 按需求生成内容。同一幂等键的已完成结果直接重放，进行中的重复请求返回 409
// @Tags Generations
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param body body dto.GenerateRequest true "生成需求"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/generations [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if !bindBody(c, &req) {
		return
	}

	res, err := h.svc.Generate(c.Request.Context(), req.ToRawBrief(userID(c), idempotencyKey(c, req.RequestID)))
	if err != nil {
		fail(c, "generation failed", err)
		return
	}

	dto.Success(c, dto.ToGenerationResponse(res))
}

// SubmitAsync 提交异步生成任务
// @Summary 异步生成
// @Tags Generations
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param body body dto.GenerateRequest true "生成需求"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/generations/async [post]
func (h *GenerationHandler) SubmitAsync(c *gin.Context) {
	var req dto.GenerateRequest
	if !bindBody(c, &req) {
		return
	}

	job, err := h.svc.SubmitJob(c.Request.Context(), req.ToRawBrief(userID(c), idempotencyKey(c, req.RequestID)))
	if err != nil {
		fail(c, "failed to submit generation job", err)
		return
	}

	dto.Accepted(c, dto.ToJobResponse(job))
}

// Get 获取已交付的结果
// @Summary 获取生成结果
// @Tags Generations
// @Produce json
// @Param rid path string true "请求 ID"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{rid} [get]
func (h *GenerationHandler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), userID(c), dto.BindRequestID(c))
	if err != nil {
		fail(c, "failed to load generation result", err)
		return
	}
	dto.Success(c, dto.ToGenerationResponse(res))
}

// Revise 基于评审意见修订已交付的结果
// @Summary 修订生成结果
// @Description 每次修订消耗一轮 revisionRounds，修订本身是一次带新请求 ID 的生成
// @Tags Generations
// @Accept json
// @Produce json
// @Param rid path string true "原请求 ID"
// @Param body body dto.RevisionRequest true "修订意见"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/generations/{rid}/revisions [post]
func (h *GenerationHandler) Revise(c *gin.Context) {
	var req dto.RevisionRequest
	if !bindBody(c, &req) {
		return
	}

	in := generation.RevisionInput{
		RequestID: c.GetHeader(IdempotencyKeyHeader),
		Comment:   req.Comment,
	}
	if in.RequestID == "" {
		in.RequestID = req.RequestID
	}

	res, err := h.svc.Revise(c.Request.Context(), userID(c), dto.BindRequestID(c), in)
	if err != nil {
		fail(c, "revision failed", err)
		return
	}
	dto.Success(c, dto.ToGenerationResponse(res))
}
