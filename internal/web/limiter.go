package web

// limiter.go bounds how many ARF uploads and table builds run at once.
// Both decode or encode a whole FITS file in memory; requests that cannot
// get a slot within maxWait fail with errBusy.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var errBusy = errors.New("too many uploads in progress")

const (
	defaultMaxConcurrent = 4
	defaultMaxWait       = 10 * time.Second
)

type workLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// newWorkLimiter allows maxConcurrent holders at once. Non-positive
// arguments take the defaults.
func newWorkLimiter(maxConcurrent int, maxWait time.Duration) *workLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	return &workLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// acquire waits for a slot. Every nil return must be paired with release.
func (l *workLimiter) acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errBusy
	}
}

func (l *workLimiter) release() {
	l.active.Add(-1)
	<-l.slots
}

// limiterStatus is reported by /healthz.
type limiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *workLimiter) status() limiterStatus {
	return limiterStatus{
		Active:        int(l.active.Load()),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
