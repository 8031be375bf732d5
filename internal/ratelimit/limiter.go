package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Simple token bucket that paces outgoing LCD queries.
// Tokens refill at perSec up to burst.

type Limiter struct {
	tokens chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func New(perSec, burst int) *Limiter {
	if perSec <= 0 {
		perSec = 50
	}
	if burst <= 0 {
		burst = perSec
	}
	l := &Limiter{tokens: make(chan struct{}, burst), stop: make(chan struct{})}
	// fill burst
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	interval := time.Second / time.Duration(perSec)
	go l.refill(interval)
	return l
}

func (l *Limiter) refill(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case <-l.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// allow takes a token without blocking.
func (l *Limiter) allow() bool {
	select {
	case <-l.tokens:
		return true
	default:
		return false
	}
}

// Close stops the refill goroutine. Safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
