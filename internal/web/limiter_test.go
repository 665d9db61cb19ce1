package web

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkLimiter_AcquireRelease(t *testing.T) {
	l := newWorkLimiter(2, time.Second)
	ctx := context.Background()

	if got := l.status(); got != (limiterStatus{Active: 0, Available: 2, MaxConcurrent: 2}) {
		t.Errorf("initial status = %+v", got)
	}
	for i := 0; i < 2; i++ {
		if err := l.acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if got := l.status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("full status = %+v", got)
	}

	l.release()
	l.release()
	if got := l.status(); got.Active != 0 || got.Available != 2 {
		t.Errorf("drained status = %+v", got)
	}
}

func TestWorkLimiter_Busy(t *testing.T) {
	l := newWorkLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := l.acquire(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.release()

	if err := l.acquire(ctx); !errors.Is(err, errBusy) {
		t.Errorf("acquire on full limiter = %v, want errBusy", err)
	}
	if got := MapError(errBusy); got.Code != "UPL002" {
		t.Errorf("MapError(errBusy).Code = %q, want UPL002", got.Code)
	}
}

func TestWorkLimiter_ContextCancelled(t *testing.T) {
	l := newWorkLimiter(1, time.Minute)
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire with cancelled context = %v, want context.Canceled", err)
	}
}

func TestWorkLimiter_Defaults(t *testing.T) {
	l := newWorkLimiter(0, 0)
	if got := l.status().MaxConcurrent; got != defaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", got, defaultMaxConcurrent)
	}
	if l.maxWait != defaultMaxWait {
		t.Errorf("maxWait = %v, want %v", l.maxWait, defaultMaxWait)
	}
}

func TestWorkLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	l := newWorkLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer l.release()

			mu.Lock()
			if n := l.status().Active; n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent holders, limit %d", maxObserved, maxConcurrent)
	}
}
