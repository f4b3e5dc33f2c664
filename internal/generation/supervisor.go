package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"webdash/internal/domain"
	"webdash/internal/infra"
)

// State is the supervisor's position in its lifecycle.
type State int32

const (
	StateVerifying State = iota
	StatePolling
	StateComplete
	StateFailed
	StateCancelled
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	}
	return false
}

func (s State) String() string {
	switch s {
	case StateVerifying:
		return "verifying"
	case StatePolling:
		return "polling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Fatal outcomes surfaced through the failure callback. Server-reported
// failures carry the server's message verbatim instead.
var (
	ErrJobNotFound       = errors.New("job not found after maximum retries")
	ErrServerUnreachable = errors.New("error connecting to the server")
	ErrTooManyErrors     = errors.New("too many consecutive errors while checking job status")
	ErrTimedOut          = errors.New("website generation timed out")
	ErrMissingResultURL  = errors.New("website generated but URL not found")

	// ErrNoParams is returned by Retry when no parameter bag was ever
	// captured; the caller degrades to a full restart of the flow.
	ErrNoParams = errors.New("generation: no captured parameters to retry with")
	// ErrNotTerminal is returned by Retry before the supervisor has failed
	// or been cancelled.
	ErrNotTerminal = errors.New("generation: retry is only available from a terminal state")
)

// ResultSink persists the completed-site record. Persistence is best effort:
// a sink failure is logged and the completion still fires.
type ResultSink interface {
	SaveWebsite(ctx context.Context, site *domain.Website) error
}

// Options configures a Supervisor. Client is required; everything else has
// a working default.
type Options struct {
	Client  StatusClient
	Sink    ResultSink
	Starter Starter
	Logger  *infra.Logger

	OnProgress  func(Progress)
	OnComplete  func(*domain.Website)
	OnError     func(error)
	OnCancelled func()

	PollInterval   time.Duration
	NotFoundDelay  time.Duration
	TransportDelay time.Duration

	MaxNotFoundRetries   int
	MaxConsecutiveErrors int
	MaxAttempts          int

	// RetryVerifyErrors applies the transport retry policy during the
	// verification step instead of failing on the first transport error.
	// Off by default to preserve the historical fail-fast behavior.
	RetryVerifyErrors bool
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.NotFoundDelay <= 0 {
		o.NotFoundDelay = DefaultNotFoundDelay
	}
	if o.TransportDelay <= 0 {
		o.TransportDelay = DefaultTransportDelay
	}
	if o.MaxNotFoundRetries <= 0 {
		o.MaxNotFoundRetries = DefaultMaxNotFoundRetries
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
}

func (o Options) policy() RetryPolicy {
	return RetryPolicy{
		NotFoundDelay:        o.NotFoundDelay,
		TransportDelay:       o.TransportDelay,
		MaxNotFoundRetries:   o.MaxNotFoundRetries,
		MaxConsecutiveErrors: o.MaxConsecutiveErrors,
		MaxAttempts:          o.MaxAttempts,
	}
}

// Supervisor drives one generation job from verification through polling to
// exactly one terminal outcome. It owns its cancellation flag and timers;
// nothing about it is process-global.
type Supervisor struct {
	jobID  string
	opts   Options
	logger zerolog.Logger

	started  atomic.Bool
	cancelCh chan struct{}
	cancel   sync.Once

	done     chan struct{}
	terminal sync.Once

	updates chan Progress

	mu       sync.Mutex
	state    State
	params   domain.GenerationParams
	site     *domain.Website
	err      error
	progress Progress
}

// NewSupervisor constructs a supervisor for the given job id.
func NewSupervisor(jobID string, opts Options) (*Supervisor, error) {
	if jobID == "" {
		return nil, errors.New("generation: job id is required")
	}
	if opts.Client == nil {
		return nil, errors.New("generation: status client is required")
	}
	opts.normalize()

	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}

	return &Supervisor{
		jobID:    jobID,
		opts:     opts,
		logger:   logger.With().Str("job_id", jobID).Logger(),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
		updates:  make(chan Progress, 16),
		state:    StateVerifying,
		progress: progressFor(domain.JobStatusPending, 0),
	}, nil
}

// JobID returns the supervised job id.
func (s *Supervisor) JobID() string { return s.jobID }

// Start launches the supervision loop. It is idempotent: only the first call
// starts a loop, later calls are no-ops.
func (s *Supervisor) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run(ctx)
}

// Run starts the loop and blocks until a terminal state is reached. It is
// the imperative adapter over the same machine the channel consumers use.
func (s *Supervisor) Run(ctx context.Context) (State, error) {
	s.Start(ctx)
	<-s.done
	st, err := s.Outcome()
	return st, err
}

// Cancel requests cooperative cancellation. It is safe to call from any
// goroutine at any time; the loop observes it at the next suspension point
// and discards any response already in flight.
func (s *Supervisor) Cancel() {
	s.cancel.Do(func() { close(s.cancelCh) })
}

// Done is closed once the supervisor reaches a terminal state.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Updates streams derived progress to UI consumers. The channel is closed on
// terminal transition. Slow consumers miss intermediate values rather than
// stalling the poll loop.
func (s *Supervisor) Updates() <-chan Progress { return s.updates }

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the last derived progress.
func (s *Supervisor) Snapshot() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Params returns the captured generation parameter bag, if any.
func (s *Supervisor) Params() domain.GenerationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

// Website returns the completed-site record after a Complete outcome.
func (s *Supervisor) Website() *domain.Website {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.site
}

// Outcome returns the terminal state and the fatal error, if any. Before a
// terminal transition the error is always nil.
func (s *Supervisor) Outcome() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.err
}

// Retry relaunches an equivalent job under a fresh id using the captured
// parameters. It is only valid after a Failed or Cancelled outcome, and the
// caller must construct a new Supervisor for the returned id; this one is
// spent.
func (s *Supervisor) Retry(ctx context.Context) (string, error) {
	state, _ := s.Outcome()
	if state != StateFailed && state != StateCancelled {
		return "", ErrNotTerminal
	}
	if s.opts.Starter == nil {
		return "", errors.New("generation: no starter configured")
	}
	params := s.Params()
	if len(params) == 0 {
		return "", ErrNoParams
	}
	newID := NewJobID()
	if err := s.opts.Starter.StartJob(ctx, newID, params); err != nil {
		return "", fmt.Errorf("generation: retry start: %w", err)
	}
	s.logger.Info().Str("new_job_id", newID).Msg("generation: relaunched job with captured params")
	return newID, nil
}

// run is the single goroutine that owns all state transitions. Requests are
// strictly serialized: at most one FetchStatus is in flight at a time.
func (s *Supervisor) run(ctx context.Context) {
	rs := newRetryState(s.opts.policy())

	if !s.verify(ctx, rs) {
		return
	}

	s.setPolling()
	// The delay before the next poll: the fixed cadence after a success, the
	// classification's retry delay after a transient failure.
	delay := s.opts.PollInterval
	for {
		if !s.sleep(ctx, delay) {
			s.finishCancelled()
			return
		}
		if !rs.observeAttempt() {
			s.finishFailed(ErrTimedOut)
			return
		}

		res := s.opts.Client.FetchStatus(ctx, s.jobID)
		if s.cancelRequested(ctx) {
			// A response that arrives after cancellation is stale; no state
			// transition may come out of it.
			s.finishCancelled()
			return
		}

		switch res.Kind {
		case FetchNotFound:
			d := rs.observeNotFound()
			if !d.Retry {
				s.finishFailed(ErrJobNotFound)
				return
			}
			delay = d.Delay
		case FetchTransportError:
			s.logger.Warn().Err(res.Err).Msg("generation: poll failed")
			d := rs.observeTransport()
			if !d.Retry {
				s.finishFailed(fmt.Errorf("%w: %v", ErrTooManyErrors, res.Err))
				return
			}
			delay = d.Delay
		case FetchFound:
			rs.observeSuccess()
			if s.handleSnapshot(ctx, res.Snapshot) {
				return
			}
			delay = s.opts.PollInterval
		}
	}
}

// verify performs the initial existence check. It returns true when the
// machine should proceed to polling; on false a terminal state has been set.
func (s *Supervisor) verify(ctx context.Context, rs *retryState) bool {
	for {
		if s.cancelRequested(ctx) {
			s.finishCancelled()
			return false
		}
		res := s.opts.Client.FetchStatus(ctx, s.jobID)
		if s.cancelRequested(ctx) {
			s.finishCancelled()
			return false
		}

		switch res.Kind {
		case FetchTransportError:
			if !s.opts.RetryVerifyErrors {
				s.finishFailed(fmt.Errorf("%w: %v", ErrServerUnreachable, res.Err))
				return false
			}
			d := rs.observeTransport()
			if !d.Retry {
				s.finishFailed(fmt.Errorf("%w: %v", ErrTooManyErrors, res.Err))
				return false
			}
			if !s.sleep(ctx, d.Delay) {
				s.finishCancelled()
				return false
			}
		case FetchNotFound:
			d := rs.observeNotFound()
			if !d.Retry {
				s.finishFailed(ErrJobNotFound)
				return false
			}
			if !s.sleep(ctx, d.Delay) {
				s.finishCancelled()
				return false
			}
		case FetchFound:
			rs.observeSuccess()
			snap := res.Snapshot
			s.captureParams(snap)
			switch snap.Status {
			case domain.JobStatusFailed:
				s.finishFailed(serverError(snap.Error))
				return false
			case domain.JobStatusComplete:
				s.finishFromComplete(ctx, snap)
				return false
			case domain.JobStatusCancelled:
				s.finishCancelled()
				return false
			default:
				// pending or processing: the job exists, move to polling.
				return true
			}
		}
	}
}

// handleSnapshot processes one Found observation during polling. It returns
// true when a terminal state was reached.
func (s *Supervisor) handleSnapshot(ctx context.Context, snap *domain.JobSnapshot) bool {
	s.captureParams(snap)
	switch snap.Status {
	case domain.JobStatusComplete:
		s.finishFromComplete(ctx, snap)
		return true
	case domain.JobStatusFailed:
		s.logger.Warn().Str("error", snap.Error).Msg("generation: server reported failure")
		s.finishFailed(serverError(snap.Error))
		return true
	case domain.JobStatusCancelled:
		// Cancelled by another actor, e.g. a different tab.
		s.finishCancelled()
		return true
	default:
		status := snap.Status
		if status != domain.JobStatusPending {
			status = domain.JobStatusProcessing
		}
		s.emitProgress(progressFor(status, snap.Progress))
		return false
	}
}

func (s *Supervisor) finishFromComplete(ctx context.Context, snap *domain.JobSnapshot) {
	if !snap.HasResultURL() {
		s.finishFailed(ErrMissingResultURL)
		return
	}
	site := domain.WebsiteFromSnapshot(snap, time.Now().UTC())
	if s.opts.Sink != nil {
		if err := s.opts.Sink.SaveWebsite(ctx, site); err != nil {
			// Best effort: the in-memory result stays authoritative for the
			// session even when the durable write fails.
			s.logger.Warn().Err(err).Msg("generation: persist completed site failed")
		}
	}
	s.finishComplete(site)
}

func (s *Supervisor) captureParams(snap *domain.JobSnapshot) {
	if len(snap.GenerationParams) == 0 {
		return
	}
	s.mu.Lock()
	if s.params == nil {
		s.params = snap.GenerationParams.Clone()
	}
	s.mu.Unlock()
}

func (s *Supervisor) setPolling() {
	s.mu.Lock()
	s.state = StatePolling
	s.mu.Unlock()
	s.logger.Debug().Msg("generation: job verified, polling")
}

func (s *Supervisor) emitProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()

	select {
	case s.updates <- p:
	default:
	}
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(p)
	}
}

// cancelRequested reports whether cancellation was requested, either through
// Cancel or by the caller's context.
func (s *Supervisor) cancelRequested(ctx context.Context) bool {
	select {
	case <-s.cancelCh:
		return true
	default:
	}
	return ctx.Err() != nil
}

// sleep waits for d, returning false when cancellation interrupts the wait.
func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.cancelCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish performs the single terminal transition. The once guard makes the
// exactly-one-callback invariant structural: duplicate late observations
// cannot fire a second delivery, and teardown is synchronous with the
// transition so no further network calls can follow it.
func (s *Supervisor) finish(state State, site *domain.Website, err error) {
	s.terminal.Do(func() {
		final := s.Snapshot()
		switch state {
		case StateComplete:
			final = progressFor(domain.JobStatusComplete, 100)
		case StateFailed:
			final.Status = ProgressError
		case StateCancelled:
			final.Status = ProgressCancelled
		}

		s.mu.Lock()
		s.state = state
		s.site = site
		s.err = err
		s.progress = final
		s.mu.Unlock()

		select {
		case s.updates <- final:
		default:
		}
		close(s.updates)
		close(s.done)

		switch state {
		case StateComplete:
			s.logger.Info().Str("site_url", site.SiteURL).Msg("generation: job complete")
			if s.opts.OnComplete != nil {
				s.opts.OnComplete(site)
			}
		case StateFailed:
			s.logger.Warn().Err(err).Msg("generation: job failed")
			if s.opts.OnError != nil {
				s.opts.OnError(err)
			}
		case StateCancelled:
			s.logger.Info().Msg("generation: job cancelled")
			if s.opts.OnCancelled != nil {
				s.opts.OnCancelled()
			}
		}
	})
}

func (s *Supervisor) finishComplete(site *domain.Website) { s.finish(StateComplete, site, nil) }
func (s *Supervisor) finishFailed(err error)              { s.finish(StateFailed, nil, err) }
func (s *Supervisor) finishCancelled()                    { s.finish(StateCancelled, nil, nil) }

// serverError preserves the server-reported failure message verbatim.
func serverError(msg string) error {
	if msg == "" {
		return errors.New("website generation failed")
	}
	return errors.New(msg)
}
