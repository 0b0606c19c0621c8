package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter bounds how many calls are in flight and spaces out their starts.
// It is shared by every caller that talks to a rate-sensitive upstream.
type Limiter struct {
	semaphore   chan struct{}
	minInterval time.Duration

	mu   sync.Mutex
	next time.Time
}

// New creates a Limiter allowing maxInFlight concurrent calls, each
// starting at least minInterval after the previous one.
func New(maxInFlight int, minInterval time.Duration) *Limiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Limiter{
		semaphore:   make(chan struct{}, maxInFlight),
		minInterval: minInterval,
	}
}

// Do runs fn once a slot is free and the pacing interval has passed.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if l == nil {
		return fn(ctx)
	}

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.semaphore }()

	if err := l.wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// wait reserves the next start time and sleeps until it arrives.
func (l *Limiter) wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.minInterval)
	l.mu.Unlock()

	delay := time.Until(start)
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
