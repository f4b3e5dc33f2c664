package tenweb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"webdash/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("tenweb: api key is required")

// Options configures the 10Web hosting client.
type Options struct {
	APIKey         string
	BaseURL        string
	DomainSuffix   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the 10Web website-builder API.
type Client struct {
	apiKey       string
	baseURL      string
	domainSuffix string
	httpClient   *http.Client
	logger       *infra.Logger
}

type createSiteRequest struct {
	Subdomain string `json:"subdomain"`
	SiteTitle string `json:"site_title"`
}

type createSiteResponse struct {
	Status string `json:"status"`
	Data   struct {
		DomainID int64  `json:"domain_id"`
		SiteURL  string `json:"site_url"`
	} `json:"data"`
	Message string `json:"message"`
}

type sitemapRequest struct {
	DomainID int64         `json:"domain_id"`
	Params   sitemapParams `json:"params"`
}

type sitemapParams struct {
	Prompt              string `json:"prompt"`
	BusinessType        string `json:"business_type"`
	BusinessName        string `json:"business_name"`
	BusinessDescription string `json:"business_description"`
	Locale              string `json:"locale,omitempty"`
}

type sitemapResponse struct {
	Status string `json:"status"`
	Data   struct {
		UniqueID string `json:"unique_id"`
	} `json:"data"`
	Message string `json:"message"`
}

type generatePagesRequest struct {
	DomainID     int64         `json:"domain_id"`
	UniqueID     string        `json:"unique_id"`
	WebsiteTitle string        `json:"website_title,omitempty"`
	Params       sitemapParams `json:"params"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.10web.io/v1"
	}
	suffix := strings.TrimSpace(opts.DomainSuffix)
	if suffix == "" {
		suffix = "webdash.site"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		domainSuffix: suffix,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateSite provisions an empty hosted site on the configured subdomain.
func (c *Client) CreateSite(ctx context.Context, req SiteRequest) (*Site, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	subdomain := strings.TrimSpace(req.Subdomain)
	if subdomain == "" {
		return nil, errors.New("tenweb: subdomain is required")
	}
	var decoded createSiteResponse
	if err := c.post(ctx, "/hosting/website", createSiteRequest{
		Subdomain: subdomain,
		SiteTitle: req.WebsiteTitle,
	}, &decoded); err != nil {
		return nil, err
	}
	if decoded.Status != "" && decoded.Status != "ok" {
		return nil, fmt.Errorf("tenweb: create site: %s", decoded.Message)
	}
	siteURL := strings.TrimSpace(decoded.Data.SiteURL)
	if siteURL == "" {
		siteURL = fmt.Sprintf("https://%s.%s", subdomain, c.domainSuffix)
	}
	c.logger.Debug().
		Str("job_id", req.JobID).
		Int64("domain_id", decoded.Data.DomainID).
		Str("site_url", siteURL).
		Msg("tenweb: site created")
	return &Site{DomainID: decoded.Data.DomainID, SiteURL: siteURL, Subdomain: subdomain}, nil
}

// GenerateSitemap asks the builder to draft a page structure for the site and
// returns the sitemap id used to generate the pages from it.
func (c *Client) GenerateSitemap(ctx context.Context, domainID int64, req SiteRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	var decoded sitemapResponse
	if err := c.post(ctx, "/ai/generate_sitemap", sitemapRequest{
		DomainID: domainID,
		Params:   paramsFromRequest(req),
	}, &decoded); err != nil {
		return "", err
	}
	if decoded.Status != "" && decoded.Status != "ok" {
		return "", fmt.Errorf("tenweb: generate sitemap: %s", decoded.Message)
	}
	uniqueID := strings.TrimSpace(decoded.Data.UniqueID)
	if uniqueID == "" {
		return "", errors.New("tenweb: empty sitemap id")
	}
	return uniqueID, nil
}

// GeneratePages fills the site with AI-generated pages from a drafted sitemap.
func (c *Client) GeneratePages(ctx context.Context, domainID int64, sitemapID string, req SiteRequest) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	var decoded statusResponse
	if err := c.post(ctx, "/ai/generate_site_from_sitemap", generatePagesRequest{
		DomainID:     domainID,
		UniqueID:     sitemapID,
		WebsiteTitle: req.WebsiteTitle,
		Params:       paramsFromRequest(req),
	}, &decoded); err != nil {
		return err
	}
	if decoded.Status != "" && decoded.Status != "ok" {
		return fmt.Errorf("tenweb: generate pages: %s", decoded.Message)
	}
	return nil
}

// Publish takes the generated site live.
func (c *Client) Publish(ctx context.Context, domainID int64) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	var decoded statusResponse
	payload := map[string]int64{"domain_id": domainID}
	if err := c.post(ctx, "/hosting/website/publish", payload, &decoded); err != nil {
		return err
	}
	if decoded.Status != "" && decoded.Status != "ok" {
		return fmt.Errorf("tenweb: publish: %s", decoded.Message)
	}
	return nil
}

func paramsFromRequest(req SiteRequest) sitemapParams {
	return sitemapParams{
		Prompt:              req.Prompt,
		BusinessType:        req.BusinessType,
		BusinessName:        req.BusinessName,
		BusinessDescription: req.BusinessDescription,
		Locale:              req.Locale,
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tenweb: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("tenweb: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("tenweb: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("tenweb: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail statusResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return fmt.Errorf("tenweb: %s", detail.Message)
		}
		return fmt.Errorf("tenweb: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("tenweb: decode response: %w", err)
	}
	return nil
}

var _ Builder = (*Client)(nil)
