package tenweb

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode"
)

// Synthetic is a local stand-in builder used when no 10Web API key is
// configured. It produces plausible hosted-site results without remote calls
// so the rest of the pipeline can run end to end in development.
type Synthetic struct {
	DomainSuffix string
	StepDelay    time.Duration
}

// NewSynthetic returns a synthetic builder for the given site domain suffix.
func NewSynthetic(domainSuffix string) *Synthetic {
	suffix := strings.TrimSpace(domainSuffix)
	if suffix == "" {
		suffix = "webdash.site"
	}
	return &Synthetic{DomainSuffix: suffix}
}

func (s *Synthetic) CreateSite(ctx context.Context, req SiteRequest) (*Site, error) {
	if err := s.pause(ctx); err != nil {
		return nil, err
	}
	subdomain := strings.TrimSpace(req.Subdomain)
	if subdomain == "" {
		subdomain = Slugify(req.BusinessName)
	}
	if subdomain == "" {
		subdomain = Slugify(req.JobID)
	}
	h := fnv.New32a()
	h.Write([]byte(req.JobID))
	return &Site{
		DomainID:  int64(h.Sum32()),
		SiteURL:   fmt.Sprintf("https://%s.%s", subdomain, s.DomainSuffix),
		Subdomain: subdomain,
	}, nil
}

func (s *Synthetic) GenerateSitemap(ctx context.Context, domainID int64, req SiteRequest) (string, error) {
	if err := s.pause(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("sitemap-%d", domainID), nil
}

func (s *Synthetic) GeneratePages(ctx context.Context, domainID int64, sitemapID string, req SiteRequest) error {
	return s.pause(ctx)
}

func (s *Synthetic) Publish(ctx context.Context, domainID int64) error {
	return s.pause(ctx)
}

func (s *Synthetic) pause(ctx context.Context) error {
	if s.StepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.StepDelay):
		return nil
	}
}

// Slugify lowers a free-form name into a DNS-safe subdomain label.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 63 {
		out = strings.Trim(out[:63], "-")
	}
	return out
}

var _ Builder = (*Synthetic)(nil)
