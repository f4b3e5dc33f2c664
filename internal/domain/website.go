package domain

import "time"

// WebsiteStatusActive is the status written for a freshly completed site.
const WebsiteStatusActive = "active"

// Website is the persisted record of a completed generation job. Field names
// are part of the downstream contract and must not change.
type Website struct {
	JobID     string    `json:"jobId"`
	SiteURL   string    `json:"siteUrl"`
	Subdomain string    `json:"subdomain"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status"`
	DomainID  int64     `json:"domainId"`
}

// WebsiteFromSnapshot builds the completed-site record out of a terminal
// complete snapshot.
func WebsiteFromSnapshot(snap *JobSnapshot, now time.Time) *Website {
	return &Website{
		JobID:     snap.JobID,
		SiteURL:   snap.SiteURL,
		Subdomain: snap.Subdomain,
		CreatedAt: now,
		Status:    WebsiteStatusActive,
		DomainID:  snap.DomainID,
	}
}
