package providers

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a fixed minimum delay between consecutive requests. The
// upstream quota is a simple requests-per-minute cap, so a constant spacing
// is enough; there is no token bucket and no burst allowance.
type Pacer struct {
	mu sync.Mutex

	delay    time.Duration
	lastCall time.Time

	// Statistics
	totalConsumed int64
	totalWaited   time.Duration
}

// PacerStatus reports current pacer state.
type PacerStatus struct {
	Delay         time.Duration `json:"delay"`
	TotalConsumed int64         `json:"total_consumed"`
	TotalWaited   time.Duration `json:"total_waited"`
}

// NewPacer creates a pacer with the given inter-request delay. A
// non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks until the fixed delay since the previous call has elapsed,
// or the context is cancelled. The first call never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	var wait time.Duration
	if !p.lastCall.IsZero() && p.delay > 0 {
		elapsed := time.Since(p.lastCall)
		if elapsed < p.delay {
			wait = p.delay - elapsed
		}
	}
	p.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	p.mu.Lock()
	p.lastCall = time.Now()
	p.totalConsumed++
	p.totalWaited += wait
	p.mu.Unlock()
	return nil
}

// Status returns current pacer statistics.
func (p *Pacer) Status() PacerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PacerStatus{
		Delay:         p.delay,
		TotalConsumed: p.totalConsumed,
		TotalWaited:   p.totalWaited,
	}
}
