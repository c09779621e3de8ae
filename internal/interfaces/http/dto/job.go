package dto

import (
	"encoding/json"
	"time"

	"z-writer-ai-api/internal/domain/entity"
)

// JobResponse 任务响应
type JobResponse struct {
	ID              string              `json:"id"`
	RequestID       string              `json:"request_id"`
	Status          string              `json:"status"`
	ContentType     string              `json:"content_type"`
	TargetWordCount int                 `json:"target_word_count"`
	Keywords        []string            `json:"keywords,omitempty"`
	Sections        []string            `json:"sections,omitempty"`
	Result          *GenerationResponse `json:"result,omitempty"`
	ErrorCode       string              `json:"error_code,omitempty"`
	ErrorMsg        string              `json:"error_msg,omitempty"`
	RetryCount      int                 `json:"retry_count"`
	DurationMs      int64               `json:"duration_ms,omitempty"`
	StartedAt       *time.Time          `json:"started_at,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// JobListResponse 任务列表响应
type JobListResponse struct {
	Jobs []*JobResponse `json:"jobs"`
}

// ToJobResponse 将领域实体转换为响应 DTO。结果无法解析时省略
func ToJobResponse(j *entity.GenerationJob) *JobResponse {
	if j == nil {
		return nil
	}

	resp := &JobResponse{
		ID:              j.ID,
		RequestID:       j.RequestID,
		Status:          string(j.Status),
		ContentType:     j.ContentType,
		TargetWordCount: j.TargetWordCount,
		Keywords:        j.Keywords,
		Sections:        j.Sections,
		ErrorCode:       j.ErrorCode,
		ErrorMsg:        j.ErrorMessage,
		RetryCount:      j.RetryCount,
		DurationMs:      j.DurationMs,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}

	if len(j.Result) > 0 {
		var res entity.GenerationResult
		if err := json.Unmarshal(j.Result, &res); err == nil {
			resp.Result = ToGenerationResponse(&res)
		}
	}

	return resp
}

// ToJobListResponse 将领域实体列表转换为响应 DTO
func ToJobListResponse(jobs []*entity.GenerationJob) *JobListResponse {
	resp := &JobListResponse{
		Jobs: make([]*JobResponse, 0, len(jobs)),
	}

	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, ToJobResponse(j))
	}

	return resp
}
