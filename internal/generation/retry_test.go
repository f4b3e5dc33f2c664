package generation

import (
	"testing"
	"time"
)

func TestRetryStateNotFoundCap(t *testing.T) {
	rs := newRetryState(DefaultRetryPolicy())
	for i := 0; i < DefaultMaxNotFoundRetries-1; i++ {
		d := rs.observeNotFound()
		if !d.Retry {
			t.Fatalf("observation %d should still retry", i+1)
		}
		if d.Delay != DefaultNotFoundDelay {
			t.Fatalf("delay = %v, want %v", d.Delay, DefaultNotFoundDelay)
		}
	}
	if d := rs.observeNotFound(); d.Retry {
		t.Fatalf("observation %d should give up", DefaultMaxNotFoundRetries)
	}
}

func TestRetryStateTransportCap(t *testing.T) {
	rs := newRetryState(DefaultRetryPolicy())
	for i := 0; i < DefaultMaxConsecutiveErrors-1; i++ {
		d := rs.observeTransport()
		if !d.Retry {
			t.Fatalf("observation %d should still retry", i+1)
		}
		if d.Delay != DefaultTransportDelay {
			t.Fatalf("delay = %v, want %v", d.Delay, DefaultTransportDelay)
		}
	}
	if d := rs.observeTransport(); d.Retry {
		t.Fatalf("observation %d should give up", DefaultMaxConsecutiveErrors)
	}
}

func TestRetryStateSuccessResetsBothCounters(t *testing.T) {
	rs := newRetryState(DefaultRetryPolicy())
	for i := 0; i < DefaultMaxNotFoundRetries-1; i++ {
		rs.observeNotFound()
	}
	for i := 0; i < DefaultMaxConsecutiveErrors-1; i++ {
		rs.observeTransport()
	}
	rs.observeSuccess()

	if d := rs.observeNotFound(); !d.Retry {
		t.Fatalf("not-found counter should have reset")
	}
	if d := rs.observeTransport(); !d.Retry {
		t.Fatalf("transport counter should have reset")
	}
}

func TestRetryStateCountersAreIndependent(t *testing.T) {
	rs := newRetryState(RetryPolicy{
		NotFoundDelay:        time.Millisecond,
		TransportDelay:       time.Millisecond,
		MaxNotFoundRetries:   3,
		MaxConsecutiveErrors: 3,
		MaxAttempts:          100,
	})
	// Two transport errors must not consume the not-found budget.
	rs.observeTransport()
	rs.observeTransport()
	if d := rs.observeNotFound(); !d.Retry {
		t.Fatalf("not-found budget consumed by transport errors")
	}
	if d := rs.observeNotFound(); !d.Retry {
		t.Fatalf("not-found budget consumed by transport errors")
	}
	if d := rs.observeNotFound(); d.Retry {
		t.Fatalf("third not-found should give up")
	}
}

func TestRetryStateAttemptCeiling(t *testing.T) {
	rs := newRetryState(RetryPolicy{MaxAttempts: 3})
	for i := 0; i < 3; i++ {
		if !rs.observeAttempt() {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rs.observeAttempt() {
		t.Fatalf("attempt 4 should exceed the ceiling")
	}
}
