package handlers

import (
	"encoding/json"
	"net/http"

	"webdash/internal/domain"
	"webdash/internal/infra"
)

type App struct {
	Jobs     domain.JobRepository
	Websites domain.WebsiteRepository
	Logger   infra.Logger
}

func NewApp(jobs domain.JobRepository, websites domain.WebsiteRepository, logger infra.Logger) *App {
	return &App{Jobs: jobs, Websites: websites, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
