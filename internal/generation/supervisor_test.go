package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"webdash/internal/domain"
)

// scriptedClient replays a fixed sequence of results, repeating the last one
// once the script is exhausted.
type scriptedClient struct {
	mu     sync.Mutex
	script []FetchResult
	calls  int
}

func (c *scriptedClient) FetchStatus(ctx context.Context, jobID string) FetchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.script) == 0 {
		return FetchResult{Kind: FetchNotFound}
	}
	res := c.script[0]
	if len(c.script) > 1 {
		c.script = c.script[1:]
	}
	return res
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type clientFunc func(ctx context.Context, jobID string) FetchResult

func (f clientFunc) FetchStatus(ctx context.Context, jobID string) FetchResult {
	return f(ctx, jobID)
}

type recordingSink struct {
	mu    sync.Mutex
	sites []*domain.Website
	err   error
}

func (s *recordingSink) SaveWebsite(ctx context.Context, site *domain.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites = append(s.sites, site)
	return s.err
}

func (s *recordingSink) saved() []*domain.Website {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Website(nil), s.sites...)
}

type recordingStarter struct {
	mu     sync.Mutex
	jobID  string
	params domain.GenerationParams
	err    error
}

func (s *recordingStarter) StartJob(ctx context.Context, jobID string, params domain.GenerationParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = jobID
	s.params = params
	return s.err
}

func found(status domain.JobStatus, progress int) FetchResult {
	return FetchResult{Kind: FetchFound, Snapshot: &domain.JobSnapshot{
		JobID:    "job_test",
		Status:   status,
		Progress: progress,
	}}
}

func foundWithParams(status domain.JobStatus, progress int, params domain.GenerationParams) FetchResult {
	res := found(status, progress)
	res.Snapshot.GenerationParams = params
	return res
}

func notFound() FetchResult {
	return FetchResult{Kind: FetchNotFound}
}

func transportErr() FetchResult {
	return FetchResult{Kind: FetchTransportError, Err: errors.New("connection refused")}
}

func complete(siteURL, subdomain string, domainID int64) FetchResult {
	return FetchResult{Kind: FetchFound, Snapshot: &domain.JobSnapshot{
		JobID:     "job_test",
		Status:    domain.JobStatusComplete,
		Progress:  100,
		SiteURL:   siteURL,
		Subdomain: subdomain,
		DomainID:  domainID,
	}}
}

func fastOptions(client StatusClient) Options {
	return Options{
		Client:         client,
		PollInterval:   time.Millisecond,
		NotFoundDelay:  time.Millisecond,
		TransportDelay: time.Millisecond,
	}
}

func waitDone(t *testing.T, sup *Supervisor) {
	t.Helper()
	select {
	case <-sup.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not reach a terminal state")
	}
}

func TestSupervisorCompletesAndPersistsOnce(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 5),
		found(domain.JobStatusProcessing, 45),
		found(domain.JobStatusProcessing, 45),
		found(domain.JobStatusProcessing, 45),
		complete("https://x.webdash.site", "x", 42),
	}}
	sink := &recordingSink{}

	var mu sync.Mutex
	var seen []Progress
	var completions []*domain.Website

	opts := fastOptions(client)
	opts.Sink = sink
	opts.OnProgress = func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	}
	opts.OnComplete = func(site *domain.Website) {
		mu.Lock()
		completions = append(completions, site)
		mu.Unlock()
	}
	opts.OnError = func(err error) { t.Errorf("unexpected failure: %v", err) }

	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, err := sup.Outcome(); state != StateComplete || err != nil {
		t.Fatalf("outcome = (%v, %v), want (StateComplete, nil)", state, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(completions) != 1 {
		t.Fatalf("completion callback fired %d times, want 1", len(completions))
	}
	if completions[0].SiteURL != "https://x.webdash.site" {
		t.Fatalf("site url = %q", completions[0].SiteURL)
	}

	sawDesigning := false
	for _, p := range seen {
		if p.CurrentStep == StepDesigningPages && p.StepIndex == 2 {
			sawDesigning = true
		}
	}
	if !sawDesigning {
		t.Fatalf("progress stream missed designing-pages at index 2: %#v", seen)
	}

	saved := sink.saved()
	if len(saved) != 1 {
		t.Fatalf("sink received %d records, want 1", len(saved))
	}
	rec := saved[0]
	if rec.JobID != "job_test" || rec.Subdomain != "x" || rec.DomainID != 42 || rec.Status != domain.WebsiteStatusActive {
		t.Fatalf("persisted record = %#v", rec)
	}
}

func TestSupervisorNotFoundCapFails(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{notFound()}}

	var mu sync.Mutex
	var failures []error

	opts := fastOptions(client)
	opts.MaxNotFoundRetries = DefaultMaxNotFoundRetries
	opts.OnError = func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, _ := sup.Outcome(); state != StateFailed {
		t.Fatalf("state = %v, want StateFailed", state)
	}
	if client.callCount() != DefaultMaxNotFoundRetries {
		t.Fatalf("calls = %d, want exactly %d", client.callCount(), DefaultMaxNotFoundRetries)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 1 {
		t.Fatalf("failure callback fired %d times, want 1", len(failures))
	}
	if !strings.Contains(failures[0].Error(), "maximum retries") {
		t.Fatalf("error = %q, want it to mention maximum retries", failures[0])
	}

	// Terminal teardown: the script keeps answering NotFound, but no further
	// network calls may happen.
	time.Sleep(20 * time.Millisecond)
	if client.callCount() != DefaultMaxNotFoundRetries {
		t.Fatalf("network calls after terminal state: %d", client.callCount())
	}
}

func TestSupervisorNotFoundCounterResetsOnSuccess(t *testing.T) {
	script := []FetchResult{found(domain.JobStatusProcessing, 1)}
	for i := 0; i < DefaultMaxNotFoundRetries-1; i++ {
		script = append(script, notFound())
	}
	script = append(script, found(domain.JobStatusProcessing, 30))
	for i := 0; i < DefaultMaxNotFoundRetries; i++ {
		script = append(script, notFound())
	}
	client := &scriptedClient{script: script}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, terr := sup.Outcome(); state != StateFailed || !errors.Is(terr, ErrJobNotFound) {
		t.Fatalf("outcome = (%v, %v), want not-found failure", state, terr)
	}
	want := 1 + (DefaultMaxNotFoundRetries - 1) + 1 + DefaultMaxNotFoundRetries
	if client.callCount() != want {
		t.Fatalf("calls = %d, want %d (counter must reset on success)", client.callCount(), want)
	}
}

func TestSupervisorTransportCapDuringPolling(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 10),
		transportErr(),
	}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	state, terr := sup.Outcome()
	if state != StateFailed || !errors.Is(terr, ErrTooManyErrors) {
		t.Fatalf("outcome = (%v, %v), want consecutive-error failure", state, terr)
	}
	if got, want := client.callCount(), 1+DefaultMaxConsecutiveErrors; got != want {
		t.Fatalf("calls = %d, want %d", got, want)
	}
}

func TestSupervisorGlobalAttemptCeiling(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{found(domain.JobStatusProcessing, 50)}}

	opts := fastOptions(client)
	opts.MaxAttempts = 3
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	state, terr := sup.Outcome()
	if state != StateFailed || !errors.Is(terr, ErrTimedOut) {
		t.Fatalf("outcome = (%v, %v), want timeout failure", state, terr)
	}
	// One verification fetch plus the capped polling attempts.
	if got, want := client.callCount(), 1+3; got != want {
		t.Fatalf("calls = %d, want %d", got, want)
	}
}

func TestSupervisorVerifyTransportErrorFailsFast(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{transportErr()}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	state, terr := sup.Outcome()
	if state != StateFailed || !errors.Is(terr, ErrServerUnreachable) {
		t.Fatalf("outcome = (%v, %v), want fail-fast verification error", state, terr)
	}
	if client.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", client.callCount())
	}
}

func TestSupervisorFailedProgressReportsErrorStatus(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{transportErr()}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	snap := sup.Snapshot()
	if snap.Status != ProgressError {
		t.Fatalf("progress status = %q, want %q", snap.Status, ProgressError)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal progress: %v", err)
	}
	if !strings.Contains(string(raw), `"status":"error"`) {
		t.Fatalf("serialized progress = %s, want status \"error\"", raw)
	}
}

func TestSupervisorVerifyTransportErrorRetriesWhenConfigured(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		transportErr(),
		transportErr(),
		found(domain.JobStatusProcessing, 10),
		complete("https://x.webdash.site", "x", 1),
	}}

	opts := fastOptions(client)
	opts.RetryVerifyErrors = true
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, terr := sup.Outcome(); state != StateComplete || terr != nil {
		t.Fatalf("outcome = (%v, %v), want completion after verify retries", state, terr)
	}
}

func TestSupervisorCompleteWithoutURLFails(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 10),
		complete("", "x", 1),
	}}
	sink := &recordingSink{}

	opts := fastOptions(client)
	opts.Sink = sink
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	state, terr := sup.Outcome()
	if state != StateFailed || !errors.Is(terr, ErrMissingResultURL) {
		t.Fatalf("outcome = (%v, %v), want missing-url failure", state, terr)
	}
	if len(sink.saved()) != 0 {
		t.Fatalf("sink must not receive a record without a usable URL")
	}
}

func TestSupervisorSinkFailureStillCompletes(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		complete("https://x.webdash.site", "x", 1),
	}}
	sink := &recordingSink{err: errors.New("disk full")}

	var completed bool
	var mu sync.Mutex

	opts := fastOptions(client)
	opts.Sink = sink
	opts.OnComplete = func(site *domain.Website) {
		mu.Lock()
		completed = true
		mu.Unlock()
	}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, terr := sup.Outcome(); state != StateComplete || terr != nil {
		t.Fatalf("outcome = (%v, %v), want completion despite sink error", state, terr)
	}
	mu.Lock()
	defer mu.Unlock()
	if !completed {
		t.Fatalf("completion callback did not fire")
	}
}

func TestSupervisorServerFailureCarriesExactMessageAndRetries(t *testing.T) {
	params := domain.GenerationParams{"prompt": "modern bakery website"}
	client := &scriptedClient{script: []FetchResult{
		foundWithParams(domain.JobStatusProcessing, 10, params),
		{Kind: FetchFound, Snapshot: &domain.JobSnapshot{
			JobID:  "job_test",
			Status: domain.JobStatusFailed,
			Error:  "content policy violation",
		}},
	}}
	starter := &recordingStarter{}

	var mu sync.Mutex
	var failure error

	opts := fastOptions(client)
	opts.Starter = starter
	opts.OnError = func(err error) {
		mu.Lock()
		failure = err
		mu.Unlock()
	}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	mu.Lock()
	if failure == nil || failure.Error() != "content policy violation" {
		t.Fatalf("failure = %v, want the server message verbatim", failure)
	}
	mu.Unlock()

	newID, err := sup.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if newID == "job_test" || !strings.HasPrefix(newID, "job_") {
		t.Fatalf("new job id = %q", newID)
	}
	if starter.jobID != newID {
		t.Fatalf("starter invoked with %q, want %q", starter.jobID, newID)
	}
	if starter.params["prompt"] != "modern bakery website" {
		t.Fatalf("starter params = %#v, want the captured prompt", starter.params)
	}
}

func TestSupervisorRetryWithoutCapturedParams(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{transportErr()}}

	opts := fastOptions(client)
	opts.Starter = &recordingStarter{}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if _, err := sup.Retry(context.Background()); !errors.Is(err, ErrNoParams) {
		t.Fatalf("Retry error = %v, want ErrNoParams", err)
	}
}

func TestSupervisorRetryBeforeTerminalState(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{found(domain.JobStatusProcessing, 10)}}

	opts := fastOptions(client)
	opts.PollInterval = time.Minute
	opts.Starter = &recordingStarter{}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	defer sup.Cancel()

	if _, err := sup.Retry(context.Background()); !errors.Is(err, ErrNotTerminal) {
		t.Fatalf("Retry error = %v, want ErrNotTerminal", err)
	}
}

func TestSupervisorCancelBetweenTicks(t *testing.T) {
	firstPoll := make(chan struct{})
	var once sync.Once
	var calls int
	var mu sync.Mutex

	client := clientFunc(func(ctx context.Context, jobID string) FetchResult {
		mu.Lock()
		calls++
		mu.Unlock()
		once.Do(func() { close(firstPoll) })
		return found(domain.JobStatusProcessing, 10)
	})

	var cancelled bool
	var cbMu sync.Mutex

	opts := fastOptions(client)
	opts.PollInterval = time.Minute // cancel arrives mid-sleep
	opts.OnCancelled = func() {
		cbMu.Lock()
		cancelled = true
		cbMu.Unlock()
	}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())

	<-firstPoll
	sup.Cancel()
	waitDone(t, sup)

	if state, _ := sup.Outcome(); state != StateCancelled {
		t.Fatalf("state = %v, want StateCancelled", state)
	}
	mu.Lock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (no fetch after cancellation)", calls)
	}
	mu.Unlock()
	cbMu.Lock()
	if !cancelled {
		t.Fatalf("cancel callback did not fire")
	}
	cbMu.Unlock()
}

func TestSupervisorCancelDuringVerifyingIssuesNoFurtherCalls(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{notFound()}}
	starter := &recordingStarter{}

	opts := fastOptions(client)
	opts.NotFoundDelay = time.Minute
	opts.Starter = starter
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())

	// Let the single verification fetch land, then cancel mid-delay.
	deadline := time.Now().Add(time.Second)
	for client.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("verification fetch never happened")
		}
		time.Sleep(time.Millisecond)
	}
	sup.Cancel()
	waitDone(t, sup)

	if state, _ := sup.Outcome(); state != StateCancelled {
		t.Fatalf("state = %v, want StateCancelled", state)
	}
	if client.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", client.callCount())
	}
	if starter.jobID != "" {
		t.Fatalf("starter must not be invoked on cancellation")
	}
}

func TestSupervisorStaleCompleteAfterCancelIsDiscarded(t *testing.T) {
	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	client := clientFunc(func(ctx context.Context, jobID string) FetchResult {
		once.Do(func() { close(inFlight) })
		<-release
		return complete("https://x.webdash.site", "x", 1)
	})
	sink := &recordingSink{}

	opts := fastOptions(client)
	opts.Sink = sink
	opts.OnComplete = func(site *domain.Website) {
		t.Errorf("stale complete response must not fire completion")
	}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())

	<-inFlight
	sup.Cancel()
	close(release)
	waitDone(t, sup)

	if state, _ := sup.Outcome(); state != StateCancelled {
		t.Fatalf("state = %v, want StateCancelled (cancellation wins)", state)
	}
	if len(sink.saved()) != 0 {
		t.Fatalf("stale response must not reach the sink")
	}
}

func TestSupervisorExternalCancellationObserved(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 10),
		found(domain.JobStatusCancelled, 0),
	}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	waitDone(t, sup)

	if state, _ := sup.Outcome(); state != StateCancelled {
		t.Fatalf("state = %v, want StateCancelled for server-observed cancel", state)
	}
}

func TestSupervisorDuplicateTerminalSnapshotFiresOnce(t *testing.T) {
	var completions int
	opts := Options{
		Client:     &scriptedClient{},
		OnComplete: func(site *domain.Website) { completions++ },
	}
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	snap := complete("https://x.webdash.site", "x", 1).Snapshot
	sup.handleSnapshot(context.Background(), snap)
	sup.handleSnapshot(context.Background(), snap)

	if completions != 1 {
		t.Fatalf("completion fired %d times, want 1", completions)
	}
}

func TestSupervisorStartIsIdempotent(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		complete("https://x.webdash.site", "x", 1),
	}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())
	sup.Start(context.Background())
	sup.Start(context.Background())
	waitDone(t, sup)

	if client.callCount() != 1 {
		t.Fatalf("calls = %d, want 1 (a single loop)", client.callCount())
	}
}

func TestSupervisorUpdatesStreamCloses(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 45),
		complete("https://x.webdash.site", "x", 1),
	}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	sup.Start(context.Background())

	var last Progress
	for p := range sup.Updates() {
		last = p
	}
	if last.Status != ProgressComplete || last.Progress != 100 {
		t.Fatalf("final update = %#v, want complete at 100", last)
	}
}

func TestSupervisorRunBlocksUntilTerminal(t *testing.T) {
	client := &scriptedClient{script: []FetchResult{
		found(domain.JobStatusProcessing, 10),
		complete("https://x.webdash.site", "x", 1),
	}}

	opts := fastOptions(client)
	sup, err := NewSupervisor("job_test", opts)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	state, terr := sup.Run(context.Background())
	if state != StateComplete || terr != nil {
		t.Fatalf("Run = (%v, %v), want (StateComplete, nil)", state, terr)
	}
}
