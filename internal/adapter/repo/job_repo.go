package repo

import (
	"context"
	"encoding/json"

	"webdash/internal/domain"
	"webdash/internal/infra"
	"webdash/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on top of PostgreSQL.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new pending job with its original request parameters.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.JobSnapshot) error {
	params, err := json.Marshal(job.GenerationParams)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertJob, job.JobID, params)
	return err
}

// UpdateStatus moves a non-terminal job to the given status. Terminal jobs
// are left untouched and the call reports domain.ErrInvalidStatus.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string) error {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJobStatus, jobID, string(status), errMsg)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInvalidStatus
		}
		return err
	}
	return nil
}

// UpdateProgress records builder progress for a running job.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateJobProgress, jobID, progress)
	var status string
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInvalidStatus
		}
		return err
	}
	return nil
}

// Complete marks a job finished and attaches the hosted-site result.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID, siteURL, subdomain string, domainID int64) error {
	row := r.sql.QueryRow(ctx, sqlinline.QCompleteJob, jobID, siteURL, subdomain, domainID)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrInvalidStatus
		}
		return err
	}
	return nil
}

// GetByID fetches a job snapshot by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectJob, jobID)
	var (
		snap      domain.JobSnapshot
		status    string
		siteURL   *string
		subdomain *string
		domainID  *int64
		errMsg    *string
		params    []byte
	)
	if err := row.Scan(
		&snap.JobID,
		&status,
		&snap.Progress,
		&siteURL,
		&subdomain,
		&domainID,
		&errMsg,
		&params,
		&snap.CreatedAt,
		&snap.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	snap.Status = domain.NormalizeStatus(status)
	if siteURL != nil {
		snap.SiteURL = *siteURL
	}
	if subdomain != nil {
		snap.Subdomain = *subdomain
	}
	if domainID != nil {
		snap.DomainID = *domainID
	}
	if errMsg != nil {
		snap.Error = *errMsg
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &snap.GenerationParams); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

// Claim atomically takes the oldest pending job for the builder, moving it
// to processing so concurrent builders never pick the same job.
func (r *JobRepositoryPG) Claim(ctx context.Context) (string, domain.GenerationParams, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QClaimJob)
	var (
		jobID string
		raw   []byte
	)
	if err := row.Scan(&jobID, &raw); err != nil {
		if infra.IsNoRows(err) {
			return "", nil, domain.ErrNotFound
		}
		return "", nil, err
	}
	var params domain.GenerationParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return "", nil, err
		}
	}
	return jobID, params, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
