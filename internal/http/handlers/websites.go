package handlers

import (
	"net/http"
	"strconv"

	"webdash/internal/domain"
)

const defaultWebsiteListLimit = 20

// WebsitesList returns the most recently generated sites, newest first.
func (a *App) WebsitesList(w http.ResponseWriter, r *http.Request) {
	limit := defaultWebsiteListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}
	sites, err := a.Websites.ListRecent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list websites failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load websites")
		return
	}
	if sites == nil {
		sites = []domain.Website{}
	}
	a.json(w, http.StatusOK, map[string]any{"websites": sites})
}
