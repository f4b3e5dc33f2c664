package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"webdash/internal/domain"
	"webdash/internal/infra"
)

// FetchKind classifies the outcome of one status request.
type FetchKind int

const (
	// FetchFound means the server returned a job snapshot.
	FetchFound FetchKind = iota
	// FetchNotFound means the server answered but the job row is not visible
	// yet. This is a transient condition, not a hard failure.
	FetchNotFound
	// FetchTransportError covers network failures and non-2xx responses.
	FetchTransportError
)

// FetchResult is the normalized outcome of FetchStatus. Errors never
// propagate past this boundary; transport failures are folded into the Kind.
type FetchResult struct {
	Kind     FetchKind
	Snapshot *domain.JobSnapshot
	Err      error
}

// StatusClient issues a single status request for a job id.
type StatusClient interface {
	FetchStatus(ctx context.Context, jobID string) FetchResult
}

// Starter launches a job under the given id with the given parameter bag.
// It is consulted only by Retry.
type Starter interface {
	StartJob(ctx context.Context, jobID string, params domain.GenerationParams) error
}

// ClientOptions configures the console API client.
type ClientOptions struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the console job endpoints. It is stateless and safe to
// call repeatedly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/v1"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

type statusResponse struct {
	Job *snapshotPayload `json:"job"`
}

// snapshotPayload keeps the raw status string so spelling variants can be
// normalized in one place.
type snapshotPayload struct {
	JobID            string                  `json:"jobId"`
	Status           string                  `json:"status"`
	Progress         int                     `json:"progress"`
	SiteURL          string                  `json:"siteUrl"`
	Subdomain        string                  `json:"subdomain"`
	DomainID         int64                   `json:"domainId"`
	Error            string                  `json:"error"`
	GenerationParams domain.GenerationParams `json:"generationParams"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// FetchStatus issues one GET /job-status call and normalizes the response.
func (c *Client) FetchStatus(ctx context.Context, jobID string) FetchResult {
	endpoint := c.baseURL + "/job-status?jobId=" + url.QueryEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return FetchResult{Kind: FetchTransportError, Err: fmt.Errorf("generation: build status request: %w", err)}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FetchResult{Kind: FetchTransportError, Err: fmt.Errorf("generation: status request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{Kind: FetchTransportError, Err: fmt.Errorf("generation: read status response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FetchResult{
			Kind: FetchTransportError,
			Err:  fmt.Errorf("generation: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return FetchResult{Kind: FetchTransportError, Err: fmt.Errorf("generation: decode status response: %w", err)}
	}
	if decoded.Job == nil {
		return FetchResult{Kind: FetchNotFound}
	}

	snap := &domain.JobSnapshot{
		JobID:            decoded.Job.JobID,
		Status:           domain.NormalizeStatus(decoded.Job.Status),
		Progress:         decoded.Job.Progress,
		SiteURL:          decoded.Job.SiteURL,
		Subdomain:        decoded.Job.Subdomain,
		DomainID:         decoded.Job.DomainID,
		Error:            decoded.Job.Error,
		GenerationParams: decoded.Job.GenerationParams,
		CreatedAt:        decoded.Job.CreatedAt,
		UpdatedAt:        decoded.Job.UpdatedAt,
	}
	if snap.JobID == "" {
		snap.JobID = jobID
	}
	c.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(snap.Status)).
		Int("progress", snap.Progress).
		Msg("generation: fetched job status")
	return FetchResult{Kind: FetchFound, Snapshot: snap}
}

type startJobResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StartJob issues POST /start-job with the job id spread into the original
// parameter bag.
func (c *Client) StartJob(ctx context.Context, jobID string, params domain.GenerationParams) error {
	payload := params.Clone()
	if payload == nil {
		payload = domain.GenerationParams{}
	}
	payload["jobId"] = jobID

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("generation: encode start request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/start-job", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("generation: build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation: start request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("generation: read start response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("generation: start status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded startJobResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("generation: decode start response: %w", err)
	}
	if !decoded.Success {
		if decoded.Error != "" {
			return fmt.Errorf("generation: start job: %s", decoded.Error)
		}
		return fmt.Errorf("generation: start job rejected")
	}
	c.logger.Info().Str("job_id", jobID).Msg("generation: started job")
	return nil
}

// NotifyCancelled issues the optional fire-and-forget POST /update-job-status
// call. The supervisor never calls this itself; it is a caller decision made
// before the local Cancel.
func (c *Client) NotifyCancelled(ctx context.Context, jobID, reason string) error {
	payload := map[string]any{
		"jobId":  jobID,
		"status": string(domain.JobStatusCancelled),
		"error":  reason,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("generation: encode cancel request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update-job-status", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("generation: build cancel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation: cancel request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("generation: cancel status %d", resp.StatusCode)
	}
	return nil
}

var (
	_ StatusClient = (*Client)(nil)
	_ Starter      = (*Client)(nil)
)
