package entity

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal 是否为终态
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// GenerationJob 异步生成任务
type GenerationJob struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	RequestID string    `json:"request_id" gorm:"type:varchar(128);uniqueIndex;not null"`
	Status    JobStatus `json:"status" gorm:"type:varchar(16);index;not null"`

	ContentType     string         `json:"content_type" gorm:"type:varchar(64)"`
	TargetWordCount int            `json:"target_word_count"`
	Keywords        pq.StringArray `json:"keywords,omitempty" gorm:"type:text[]"`
	Sections        pq.StringArray `json:"sections,omitempty" gorm:"type:text[]"`

	// Input 规范化后的 GenerationRequest
	Input  json.RawMessage `json:"input" gorm:"type:jsonb;not null"`
	Result json.RawMessage `json:"result,omitempty" gorm:"type:jsonb"`

	ErrorCode    string `json:"error_code,omitempty" gorm:"type:varchar(16)"`
	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`

	Provider         string `json:"provider,omitempty" gorm:"type:varchar(32)"`
	Model            string `json:"model,omitempty" gorm:"type:varchar(64)"`
	TokensPrompt     int    `json:"tokens_prompt,omitempty"`
	TokensCompletion int    `json:"tokens_completion,omitempty"`
	IterationCount   int    `json:"iteration_count,omitempty"`
	WordCount        int    `json:"word_count,omitempty"`
	Partial          bool   `json:"partial"`
	DurationMs       int64  `json:"duration_ms,omitempty"`
	RetryCount       int    `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// NewGenerationJob 根据规范化需求创建待执行任务
func NewGenerationJob(id string, req GenerationRequest) (*GenerationJob, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	keywords := make(pq.StringArray, 0, len(req.RequiredKeywords))
	for _, k := range req.RequiredKeywords {
		keywords = append(keywords, k.Keyword)
	}
	return &GenerationJob{
		ID:              id,
		UserID:          req.UserID,
		RequestID:       req.RequestID,
		Status:          JobStatusPending,
		ContentType:     req.ContentType,
		TargetWordCount: req.TargetWordCount,
		Keywords:        keywords,
		Sections:        pq.StringArray(append([]string(nil), req.RequiredSections...)),
		Input:           input,
		CreatedAt:       time.Now(),
	}, nil
}

// Request 解析任务输入
func (j *GenerationJob) Request() (GenerationRequest, error) {
	var req GenerationRequest
	err := json.Unmarshal(j.Input, &req)
	return req, err
}

// Start 开始执行
func (j *GenerationJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 记录结果并完成任务
func (j *GenerationJob) Complete(res *GenerationResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	j.Result = raw
	j.Provider = res.Provider
	j.Model = res.Model
	j.TokensPrompt = res.TokenUsage.PromptTokens
	j.TokensCompletion = res.TokenUsage.CompletionTokens
	j.IterationCount = res.IterationCount
	j.WordCount = res.WordCount
	j.Partial = res.Partial
	j.finish(JobStatusCompleted)
	return nil
}

// Fail 任务失败
func (j *GenerationJob) Fail(code, msg string) {
	j.ErrorCode = code
	j.ErrorMessage = msg
	j.finish(JobStatusFailed)
}

// Cancel 取消任务
func (j *GenerationJob) Cancel() {
	j.finish(JobStatusCancelled)
}

func (j *GenerationJob) finish(status JobStatus) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = now.Sub(*j.StartedAt).Milliseconds()
	}
}

// Retry 重置为待执行
func (j *GenerationJob) Retry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorCode = ""
	j.ErrorMessage = ""
}
