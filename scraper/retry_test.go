package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testRetryPolicy(maxRetries int, sleeps *[]time.Duration) *retryPolicy {
	return &retryPolicy{
		maxRetries: maxRetries,
		base:       100 * time.Millisecond,
		max:        time.Second,
		jitter:     func() float64 { return 0 },
		sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
		errorCounts: make(map[string]int),
	}
}

func TestRetryPolicyRetriesTransientUpToLimit(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(2, &sleeps)

	calls := 0
	err := rp.Do(context.Background(), "detail", func(context.Context) error {
		calls++
		return ErrConnection{Err: errors.New("connection reset")}
	})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if rp.TotalRetries() != 2 {
		t.Fatalf("retries = %d, want 2", rp.TotalRetries())
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep[%d] = %v, want %v", i, sleeps[i], want[i])
		}
	}
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("last error not preserved: %v", err)
	}
	if got := rp.ErrorsByType()["connection"]; got != 3 {
		t.Fatalf("connection errors = %d, want 3", got)
	}
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(3, &sleeps)

	calls := 0
	err := rp.Do(context.Background(), "navigate", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("net::ERR_CONNECTION_RESET: connection reset by peer")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 2 || rp.TotalRetries() != 1 {
		t.Fatalf("calls=%d retries=%d, want 2/1", calls, rp.TotalRetries())
	}
}

func TestRetryPolicyNonTransientFailsImmediately(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(3, &sleeps)

	sentinel := errors.New("element not found: #search-results")
	calls := 0
	err := rp.Do(context.Background(), "search", func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if calls != 1 || len(sleeps) != 0 {
		t.Fatalf("calls=%d sleeps=%d, want 1/0", calls, len(sleeps))
	}
}

func TestRetryPolicyCancelled(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(3, &sleeps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := rp.Do(ctx, "detail", func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(0, &sleeps)
	rp.base = 200 * time.Millisecond
	rp.max = 500 * time.Millisecond

	if delay := rp.backoff(4); delay != rp.max {
		t.Fatalf("delay %v, want cap %v", delay, rp.max)
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	var sleeps []time.Duration
	rp := testRetryPolicy(0, &sleeps)

	for _, j := range []float64{-1, -0.5, 0.5, 0.999} {
		rp.jitter = func() float64 { return j }
		delay := rp.backoff(2)
		lo := time.Duration(float64(200*time.Millisecond) * 0.8)
		hi := time.Duration(float64(200*time.Millisecond) * 1.2)
		if delay < lo || delay > hi {
			t.Fatalf("jitter %v: delay %v outside [%v, %v]", j, delay, lo, hi)
		}
	}
}
