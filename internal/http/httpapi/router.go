package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"webdash/internal/http/handlers"
	"webdash/internal/middleware"
)

// Options carries router-level configuration.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	RateLimit      int
	RatePer        time.Duration
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 120
	}
	if opts.RatePer <= 0 {
		opts.RatePer = time.Minute
	}
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.RateLimit(opts.RateLimit, opts.RatePer),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Healthz)
	r.Get("/v1/job-status", app.JobStatus)
	r.Post("/v1/start-job", app.StartJob)
	r.Post("/v1/update-job-status", app.UpdateJobStatus)
	r.Get("/v1/websites", app.WebsitesList)

	return r
}
