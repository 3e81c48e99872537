package extraction

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum spacing between model calls for the whole
// process. Every call, retries included, waits on the same Pacer.
type Pacer struct {
	limiter *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

func NewPacer(minInterval time.Duration) *Pacer {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until a call is allowed and records it as the last call.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
	return nil
}

// Last is the time of the most recent permitted call.
func (p *Pacer) Last() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
