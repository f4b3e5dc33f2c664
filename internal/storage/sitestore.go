package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"webdash/internal/domain"
)

// SiteStore persists completed-site records as JSON files on the local
// filesystem. It is intended for development and for the CLI flow where a
// database is not available; the console API uses the Postgres repository
// instead.
type SiteStore struct {
	basePath string
}

// NewSiteStore initializes a SiteStore rooted at basePath.
func NewSiteStore(basePath string) (*SiteStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &SiteStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *SiteStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// SaveWebsite writes one record keyed by job id, overwriting any previous
// record for the same job.
func (s *SiteStore) SaveWebsite(ctx context.Context, site *domain.Website) error {
	if s == nil {
		return errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if site == nil || strings.TrimSpace(site.JobID) == "" {
		return errors.New("storage: website record requires a job id")
	}
	name, err := sanitizeName(site.JobID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode website: %w", err)
	}
	fullPath := filepath.Join(s.basePath, name+".json")
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("storage: write website: %w", err)
	}
	return nil
}

// List returns every stored record, newest first.
func (s *SiteStore) List(ctx context.Context) ([]domain.Website, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: read store: %w", err)
	}
	sites := make([]domain.Website, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: read website: %w", err)
		}
		var site domain.Website
		if err := json.Unmarshal(data, &site); err != nil {
			return nil, fmt.Errorf("storage: decode %s: %w", entry.Name(), err)
		}
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].CreatedAt.After(sites[j].CreatedAt)
	})
	return sites, nil
}

// sanitizeName keeps file names flat; job ids never contain separators, but
// the record may have crossed a trust boundary.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("storage: name is required")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return "", errors.New("storage: invalid name")
	}
	return name, nil
}
