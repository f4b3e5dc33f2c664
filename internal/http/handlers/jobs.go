package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"webdash/internal/domain"
	"webdash/internal/domain/jsoncfg"
	"webdash/internal/generation"
	"webdash/internal/i18n"
	"webdash/internal/middleware"
)

// JobStatus reports the current snapshot of a generation job. A job the
// console does not know about yet is not an error: builders register jobs
// asynchronously, so the response carries a null job and clients retry.
// The message accompanying the snapshot is localized to the request locale
// detected by the i18n middleware.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.URL.Query().Get("jobId"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId is required")
		return
	}
	snap, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.json(w, http.StatusOK, map[string]any{"job": nil})
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: job lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, http.StatusOK, map[string]any{
		"job":     snap,
		"message": statusMessage(locale, snap),
	})
}

// statusMessage renders the user-facing line for a snapshot: the current
// wizard step while the job runs, the outcome once it is terminal.
func statusMessage(locale string, snap *domain.JobSnapshot) string {
	switch snap.Status {
	case domain.JobStatusComplete:
		return i18n.Message(locale, i18n.KeyComplete)
	case domain.JobStatusFailed:
		return i18n.Message(locale, i18n.KeyFailed)
	case domain.JobStatusCancelled:
		return i18n.Message(locale, i18n.KeyCancelled)
	default:
		step, _ := generation.MapProgress(snap.Progress)
		return i18n.StepMessage(locale, step)
	}
}

// StartJob registers a new pending job. The body is the jobId spread into
// the original generation parameters; everything but jobId is stored verbatim
// so a later retry can resubmit an identical request.
func (a *App) StartJob(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	jobID, _ := body["jobId"].(string)
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "jobId is required"})
		return
	}
	params := domain.GenerationParams{}
	for k, v := range body {
		if k == "jobId" {
			continue
		}
		params[k] = v
	}
	var typed jsoncfg.ParamsJSON
	if err := json.Unmarshal(jsoncfg.MustMarshal(params), &typed); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid generation params"})
		return
	}
	if err := typed.Validate(); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	snap := &domain.JobSnapshot{
		JobID:            jobID,
		Status:           domain.JobStatusPending,
		GenerationParams: params,
	}
	if err := a.Jobs.Create(r.Context(), snap); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: start job failed")
		a.json(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to start job"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}

type updateJobStatusRequest struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// UpdateJobStatus lets a client push a terminal status for a job it owns.
// Only cancellation and failure may be pushed; completion is owned by the
// builder. Updating an already-terminal job is reported as success so that
// best-effort cancellation notices stay idempotent.
func (a *App) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	var req updateJobStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid payload"})
		return
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "jobId is required"})
		return
	}
	status := domain.NormalizeStatus(req.Status)
	if status != domain.JobStatusCancelled && status != domain.JobStatusFailed {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "status must be cancelled or failed"})
		return
	}
	var errMsg *string
	if msg := strings.TrimSpace(req.Error); msg != "" {
		errMsg = &msg
	}
	if err := a.Jobs.UpdateStatus(r.Context(), jobID, status, errMsg); err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			a.json(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: update job status failed")
		a.json(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to update job"})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}
