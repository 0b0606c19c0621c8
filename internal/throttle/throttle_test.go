package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := New(2, 0)
	var inFlight, peak int64

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", peak)
	}
}

func TestLimiterPacesStarts(t *testing.T) {
	l := New(4, 20*time.Millisecond)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected calls to be spaced out, finished in %v", elapsed)
	}
}

func TestLimiterHonorsCancellation(t *testing.T) {
	l := New(1, time.Hour)
	l.Do(context.Background(), func(context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := l.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected context error while waiting for pacing")
	}
	if called {
		t.Error("fn must not run after cancellation")
	}
}

func TestNilLimiterRunsDirectly(t *testing.T) {
	var l *Limiter
	ran := false
	l.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if !ran {
		t.Error("expected nil limiter to run fn")
	}
}
