// Package retry bounds the transient-failure loops around outbound
// publishes. One named policy per call site; the caller sees the last
// error once the attempts run out.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	mAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_retry_attempts_total",
		Help: "Attempts made under a retry policy, final one included.",
	}, []string{"policy"})
	mExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_retry_exhausted_total",
		Help: "Calls that failed every attempt.",
	}, []string{"policy"})
)

// Policy is a bounded retry with exponential backoff and jitter.
type Policy struct {
	Name     string
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Jitter   float64
	Log      *zap.Logger
}

// Do runs fn until it succeeds, the attempts run out, or the context
// ends. Context cancellation is never retried.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		mAttempts.WithLabelValues(p.Name).Inc()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if p.Log != nil {
			p.Log.Warn("retrying", zap.String("policy", p.Name), zap.Int("attempt", i+1), zap.Error(err))
		}
		t := time.NewTimer(p.backoff(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	mExhausted.WithLabelValues(p.Name).Inc()
	if p.Log != nil {
		p.Log.Error("retries exhausted", zap.String("policy", p.Name), zap.Error(err))
	}
	return err
}

func (p Policy) backoff(attempt int) time.Duration {
	d := float64(p.Base) * float64(int64(1)<<uint(attempt))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*p.Jitter
	}
	return time.Duration(d)
}
