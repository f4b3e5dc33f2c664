package repo

import (
	"context"

	"webdash/internal/domain"
	"webdash/internal/infra"
	"webdash/internal/sqlinline"
)

// WebsiteRepositoryPG implements domain.WebsiteRepository on top of PostgreSQL.
type WebsiteRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewWebsiteRepository creates a website repository backed by PostgreSQL.
func NewWebsiteRepository(sql infra.SQLExecutor) *WebsiteRepositoryPG {
	return &WebsiteRepositoryPG{sql: sql}
}

// Save records a completed site. Saving the same job twice is a no-op, so a
// duplicate terminal observation never produces a second record.
func (r *WebsiteRepositoryPG) Save(ctx context.Context, site *domain.Website) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertWebsite,
		site.JobID,
		site.SiteURL,
		site.Subdomain,
		site.CreatedAt,
		site.Status,
		site.DomainID,
	)
	return err
}

// ListRecent returns the newest site records, most recent first.
func (r *WebsiteRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Website, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentWebsites, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []domain.Website
	for rows.Next() {
		var site domain.Website
		if err := rows.Scan(
			&site.JobID,
			&site.SiteURL,
			&site.Subdomain,
			&site.CreatedAt,
			&site.Status,
			&site.DomainID,
		); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

var _ domain.WebsiteRepository = (*WebsiteRepositoryPG)(nil)
