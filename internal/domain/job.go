package domain

import (
	"strings"
	"time"
)

// JobStatus enumerates the lifecycle states reported by the status endpoint.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// NormalizeStatus folds server spelling variants into the canonical set.
// Older builder versions report "completed" instead of "complete".
func NormalizeStatus(raw string) JobStatus {
	s := JobStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "completed" {
		return JobStatusComplete
	}
	return s
}

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// GenerationParams is the opaque bag of original request parameters (prompt,
// business metadata, color/font choices, page layout). It is carried through
// unchanged so a retry can relaunch an identical job under a new id.
type GenerationParams map[string]any

// Clone returns a shallow copy so a captured bag cannot be mutated by the caller.
func (p GenerationParams) Clone() GenerationParams {
	if p == nil {
		return nil
	}
	out := make(GenerationParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// JobSnapshot is one observed state of a generation job as returned by the
// status endpoint. Result fields are populated only when Status is complete;
// Error only when it is failed.
type JobSnapshot struct {
	JobID            string           `json:"jobId"`
	Status           JobStatus        `json:"status"`
	Progress         int              `json:"progress"`
	SiteURL          string           `json:"siteUrl,omitempty"`
	Subdomain        string           `json:"subdomain,omitempty"`
	DomainID         int64            `json:"domainId,omitempty"`
	Error            string           `json:"error,omitempty"`
	GenerationParams GenerationParams `json:"generationParams,omitempty"`
	CreatedAt        time.Time        `json:"createdAt,omitempty"`
	UpdatedAt        time.Time        `json:"updatedAt,omitempty"`
}

// HasResultURL reports whether the snapshot carries a usable site URL. A
// complete snapshot without one is an anomaly the supervisor turns into a
// failure rather than a success.
func (s *JobSnapshot) HasResultURL() bool {
	return s != nil && strings.TrimSpace(s.SiteURL) != ""
}
