package generation

import "time"

// Default retry constants for the polling loop.
const (
	DefaultPollInterval         = 2 * time.Second
	DefaultNotFoundDelay        = 2 * time.Second
	DefaultTransportDelay       = time.Second
	DefaultMaxNotFoundRetries   = 10
	DefaultMaxConsecutiveErrors = 5
	DefaultMaxAttempts          = 120
)

// RetryPolicy holds the per-classification retry caps and delays.
type RetryPolicy struct {
	NotFoundDelay        time.Duration
	TransportDelay       time.Duration
	MaxNotFoundRetries   int
	MaxConsecutiveErrors int
	MaxAttempts          int
}

// DefaultRetryPolicy returns the production constants.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		NotFoundDelay:        DefaultNotFoundDelay,
		TransportDelay:       DefaultTransportDelay,
		MaxNotFoundRetries:   DefaultMaxNotFoundRetries,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		MaxAttempts:          DefaultMaxAttempts,
	}
}

// Decision is the outcome of classifying one failed poll attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// retryState tracks the independent per-classification counters plus the
// global attempt ceiling. NotFound and transport streaks each reset on any
// successful poll; neither consumes the other's budget.
type retryState struct {
	policy    RetryPolicy
	notFound  int
	transport int
	attempts  int
}

func newRetryState(policy RetryPolicy) *retryState {
	return &retryState{policy: policy}
}

// observeAttempt counts one dispatched poll against the global ceiling and
// reports whether the poll may proceed.
func (s *retryState) observeAttempt() bool {
	s.attempts++
	return s.attempts <= s.policy.MaxAttempts
}

// observeNotFound records a job-not-yet-visible response.
func (s *retryState) observeNotFound() Decision {
	s.notFound++
	if s.notFound >= s.policy.MaxNotFoundRetries {
		return Decision{}
	}
	return Decision{Retry: true, Delay: s.policy.NotFoundDelay}
}

// observeTransport records a network failure or non-2xx response.
func (s *retryState) observeTransport() Decision {
	s.transport++
	if s.transport >= s.policy.MaxConsecutiveErrors {
		return Decision{}
	}
	return Decision{Retry: true, Delay: s.policy.TransportDelay}
}

// observeSuccess resets both streak counters after a successful poll.
func (s *retryState) observeSuccess() {
	s.notFound = 0
	s.transport = 0
}
