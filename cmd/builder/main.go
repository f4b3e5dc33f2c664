package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"webdash/internal/adapter/repo"
	"webdash/internal/domain"
	"webdash/internal/domain/jsoncfg"
	"webdash/internal/infra"
	"webdash/internal/infra/credentials"
	"webdash/internal/providers/tenweb"
)

// Progress checkpoints reported between build phases. Each lands inside the
// band the console maps to the matching wizard step.
const (
	progressCreatingSite   = 10
	progressSitemap        = 30
	progressDesigningPages = 55
	progressOptimizing     = 75
	progressFinalizing     = 90
)

var errJobAborted = errors.New("job no longer running")

type siteBuilder struct {
	ctx       context.Context
	jobs      *repo.JobRepositoryPG
	websites  *repo.WebsiteRepositoryPG
	builder   tenweb.Builder
	logger    infra.Logger
	pollEvery time.Duration
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("builder: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	apiKey := strings.TrimSpace(cfg.TenWebAPIKey)
	if apiKey == "" {
		credStore := credentials.NewStore(runner)
		keyFromStore, err := credStore.TenWebAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("builder: failed to load tenweb api key from store")
		} else {
			apiKey = keyFromStore
		}
	}

	var builder tenweb.Builder
	if apiKey == "" {
		logger.Warn().Msg("builder: tenweb api key missing, using synthetic site generation")
		builder = tenweb.NewSynthetic(cfg.SiteDomainSuffix)
	} else {
		client, err := tenweb.NewClient(tenweb.Options{
			APIKey:       apiKey,
			BaseURL:      cfg.TenWebBaseURL,
			DomainSuffix: cfg.SiteDomainSuffix,
			HTTPClient:   &http.Client{Timeout: 60 * time.Second},
			Logger:       &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("builder: failed to configure tenweb client")
		}
		builder = client
	}

	worker := &siteBuilder{
		ctx:       ctx,
		jobs:      repo.NewJobRepository(runner),
		websites:  repo.NewWebsiteRepository(runner),
		builder:   builder,
		logger:    logger,
		pollEvery: cfg.BuilderPollEvery,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("builder: stopped with error")
	}
	logger.Info().Msg("builder: stopped")
}

func (w *siteBuilder) Run() error {
	w.logger.Info().Msg("builder: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		jobID, params, err := w.jobs.Claim(w.ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("builder: failed to claim job")
			}
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(w.pollEvery):
			}
			continue
		}

		w.handleJob(jobID, params)
	}
}

func (w *siteBuilder) handleJob(jobID string, params domain.GenerationParams) {
	w.logger.Info().Str("job_id", jobID).Msg("builder: picked job")
	if err := w.build(jobID, params); err != nil {
		if errors.Is(err, errJobAborted) || errors.Is(err, context.Canceled) {
			w.logger.Info().Str("job_id", jobID).Msg("builder: job aborted")
			return
		}
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("builder: job failed")
		msg := err.Error()
		if updErr := w.jobs.UpdateStatus(w.ctx, jobID, domain.JobStatusFailed, &msg); updErr != nil && !errors.Is(updErr, domain.ErrInvalidStatus) {
			w.logger.Error().Err(updErr).Str("job_id", jobID).Msg("builder: mark failed errored")
		}
	}
}

func (w *siteBuilder) build(jobID string, params domain.GenerationParams) error {
	req, err := siteRequest(jobID, params)
	if err != nil {
		return err
	}

	if err := w.advance(jobID, progressCreatingSite); err != nil {
		return err
	}
	site, err := w.builder.CreateSite(w.ctx, req)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}

	if err := w.advance(jobID, progressSitemap); err != nil {
		return err
	}
	sitemapID, err := w.builder.GenerateSitemap(w.ctx, site.DomainID, req)
	if err != nil {
		return fmt.Errorf("generate sitemap: %w", err)
	}

	if err := w.advance(jobID, progressDesigningPages); err != nil {
		return err
	}
	if err := w.builder.GeneratePages(w.ctx, site.DomainID, sitemapID, req); err != nil {
		return fmt.Errorf("generate pages: %w", err)
	}

	if err := w.advance(jobID, progressOptimizing); err != nil {
		return err
	}
	if err := w.advance(jobID, progressFinalizing); err != nil {
		return err
	}
	if err := w.builder.Publish(w.ctx, site.DomainID); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if err := w.jobs.Complete(w.ctx, jobID, site.SiteURL, site.Subdomain, site.DomainID); err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return errJobAborted
		}
		return fmt.Errorf("complete job: %w", err)
	}
	website := &domain.Website{
		JobID:     jobID,
		SiteURL:   site.SiteURL,
		Subdomain: site.Subdomain,
		CreatedAt: time.Now().UTC(),
		Status:    domain.WebsiteStatusActive,
		DomainID:  site.DomainID,
	}
	if err := w.websites.Save(w.ctx, website); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("builder: save website record failed")
	}
	w.logger.Info().Str("job_id", jobID).Str("site_url", site.SiteURL).Msg("builder: job complete")
	return nil
}

// advance records progress for a running job. A progress update rejected as
// invalid means the job was cancelled or failed out from under the builder,
// so the build stops without overwriting that terminal state.
func (w *siteBuilder) advance(jobID string, progress int) error {
	if err := w.jobs.UpdateProgress(w.ctx, jobID, progress); err != nil {
		if errors.Is(err, domain.ErrInvalidStatus) {
			return errJobAborted
		}
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

func siteRequest(jobID string, params domain.GenerationParams) (tenweb.SiteRequest, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return tenweb.SiteRequest{}, fmt.Errorf("encode params: %w", err)
	}
	var p jsoncfg.ParamsJSON
	if err := json.Unmarshal(raw, &p); err != nil {
		return tenweb.SiteRequest{}, fmt.Errorf("decode params: %w", err)
	}
	p.Normalize("")
	return tenweb.SiteRequest{
		JobID:               jobID,
		Subdomain:           tenweb.Slugify(p.BusinessName),
		WebsiteTitle:        p.WebsiteTitle,
		Prompt:              p.Prompt,
		BusinessType:        p.BusinessType,
		BusinessName:        p.BusinessName,
		BusinessDescription: p.BusinessDescription,
		Locale:              p.Locale,
	}, nil
}
