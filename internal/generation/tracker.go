package generation

import (
	"context"
	"sync"
)

// Tracker deduplicates supervisors per job id within the process that owns
// it. Starting a second supervisor for a job whose loop is still live is a
// no-op returning the existing one, not an error. The tracker is an explicit
// value shared by its callers; there is no package-level registry.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Supervisor
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*Supervisor)}
}

// Start returns the live supervisor for jobID, creating and starting one when
// none is active. The second return value reports whether a new loop was
// started.
func (t *Tracker) Start(ctx context.Context, jobID string, opts Options) (*Supervisor, bool, error) {
	t.mu.Lock()
	if existing, ok := t.active[jobID]; ok && !existing.State().Terminal() {
		t.mu.Unlock()
		return existing, false, nil
	}
	sup, err := NewSupervisor(jobID, opts)
	if err != nil {
		t.mu.Unlock()
		return nil, false, err
	}
	t.active[jobID] = sup
	t.mu.Unlock()

	sup.Start(ctx)
	go func() {
		<-sup.Done()
		t.mu.Lock()
		if t.active[jobID] == sup {
			delete(t.active, jobID)
		}
		t.mu.Unlock()
	}()
	return sup, true, nil
}

// Get returns the live supervisor for jobID, if any.
func (t *Tracker) Get(jobID string) (*Supervisor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sup, ok := t.active[jobID]
	return sup, ok
}

// CancelAll requests cancellation of every live supervisor, typically on
// process shutdown.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	sups := make([]*Supervisor, 0, len(t.active))
	for _, sup := range t.active {
		sups = append(sups, sup)
	}
	t.mu.Unlock()
	for _, sup := range sups {
		sup.Cancel()
	}
}
