package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Pacer sleeps a fixed delay before every row outside the warm-up window.
// The delay is applied regardless of how earlier calls went.
type Pacer struct {
	delay  time.Duration
	warmup int
	calls  int
	mu     sync.Mutex
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPacer(delay time.Duration, warmup int) *Pacer {
	if warmup < 0 {
		warmup = 0
	}
	return &Pacer{
		delay:  delay,
		warmup: warmup,
		sleep:  sleepContext,
	}
}

// WithSleep replaces the clock used between calls.
func (p *Pacer) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Pacer {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sleep = fn
	return p
}

// WaitAt paces the call for the zero-based data row index. Rows inside the
// warm-up window are not delayed even if earlier rows were never fetched.
func (p *Pacer) WaitAt(ctx context.Context, index int) error {
	p.mu.Lock()
	p.calls++
	delay, sleep := p.delay, p.sleep
	p.mu.Unlock()

	if index < p.warmup || delay <= 0 {
		return ctx.Err()
	}

	return sleep(ctx, delay)
}

// Calls returns how many paced calls have been made.
func (p *Pacer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
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
