package domain

import "context"

// JobRepository defines persistence for generation jobs.
type JobRepository interface {
	Create(ctx context.Context, job *JobSnapshot) error
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errMsg *string) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	GetByID(ctx context.Context, jobID string) (*JobSnapshot, error)
}

// WebsiteRepository persists completed-site records.
type WebsiteRepository interface {
	Save(ctx context.Context, site *Website) error
	ListRecent(ctx context.Context, limit int) ([]Website, error)
}
