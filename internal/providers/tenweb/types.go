package tenweb

import "context"

// SiteRequest describes a normalized build request passed to any site builder.
type SiteRequest struct {
	JobID               string
	Subdomain           string
	WebsiteTitle        string
	Prompt              string
	BusinessType        string
	BusinessName        string
	BusinessDescription string
	Locale              string
}

// Site is the hosted result of a build.
type Site struct {
	DomainID  int64
	SiteURL   string
	Subdomain string
}

// Builder is the contract implemented by all site builders. The phases map
// onto the progress bands the console reports while a job is processing.
type Builder interface {
	CreateSite(ctx context.Context, req SiteRequest) (*Site, error)
	GenerateSitemap(ctx context.Context, domainID int64, req SiteRequest) (string, error)
	GeneratePages(ctx context.Context, domainID int64, sitemapID string, req SiteRequest) error
	Publish(ctx context.Context, domainID int64) error
}
