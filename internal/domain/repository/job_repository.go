// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-writer-ai-api/internal/domain/entity"
)

// JobFilter 任务过滤条件
type JobFilter struct {
	Status entity.JobStatus
}

// JobRepository 异步生成任务仓储
type JobRepository interface {
	Create(ctx context.Context, job *entity.GenerationJob) error

	// GetByID 不存在时返回 nil, nil
	GetByID(ctx context.Context, id string) (*entity.GenerationJob, error)

	// GetByRequestID 按幂等请求 ID 查询，不存在时返回 nil, nil
	GetByRequestID(ctx context.Context, requestID string) (*entity.GenerationJob, error)

	Update(ctx context.Context, job *entity.GenerationJob) error

	// UpdateStatus 仅当当前状态为 from 之一时更新，返回是否更新成功
	UpdateStatus(ctx context.Context, id string, to entity.JobStatus, from ...entity.JobStatus) (bool, error)

	ListByUser(ctx context.Context, userID string, filter *JobFilter, pagination Pagination) (*PagedResult[*entity.GenerationJob], error)
}
