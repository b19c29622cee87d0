package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-sales/config"
)

const jitterFraction = 0.2

// retryPolicy retries transient failures with exponential backoff.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
	max        time.Duration
	metrics    *Metrics

	jitter func() float64 // in [-1, 1)
	sleep  func(ctx context.Context, d time.Duration) error

	totalRetries atomic.Int64

	mu          sync.Mutex
	errorCounts map[string]int
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) *retryPolicy {
	return &retryPolicy{
		maxRetries:  cfg.MaxRetries,
		base:        cfg.RetryBackoff,
		max:         cfg.RetryBackoffMax,
		metrics:     metrics,
		jitter:      func() float64 { return rand.Float64()*2 - 1 },
		sleep:       sleepContext,
		errorCounts: make(map[string]int),
	}
}

// Do runs fn, retrying up to maxRetries times while the error is
// transient. Other errors are returned on the first failure.
func (rp *retryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		rp.recordError(err)

		if !IsTransient(err) {
			return err
		}
		if attempt >= rp.maxRetries {
			break
		}

		delay := rp.backoff(attempt + 1)
		rp.totalRetries.Add(1)
		rp.metrics.IncRetries(op)
		slog.Warn("retrying after transient error",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		if sleepErr := rp.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, rp.maxRetries+1, err)
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.base
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rp.max; max > 0 && delay > max {
		delay = max
	}

	jittered := float64(delay) * (1 + jitterFraction*rp.jitter())
	return time.Duration(jittered)
}

func (rp *retryPolicy) recordError(err error) {
	label := errorTypeLabel(err)
	rp.metrics.IncError(label)
	rp.mu.Lock()
	rp.errorCounts[label]++
	rp.mu.Unlock()
}

// ErrorsByType returns failure counts per error type label.
func (rp *retryPolicy) ErrorsByType() map[string]int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	out := make(map[string]int, len(rp.errorCounts))
	for k, v := range rp.errorCounts {
		out[k] = v
	}
	return out
}

// TotalRetries returns the number of retries scheduled so far.
func (rp *retryPolicy) TotalRetries() int {
	return int(rp.totalRetries.Load())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
