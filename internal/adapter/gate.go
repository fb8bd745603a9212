package adapter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Gate caps in-flight extractions per adapter name and paces how fast new
// calls may start. Both limits are shared across all jobs so one bulk import
// cannot overwhelm a single upstream source.
type Gate struct {
	mu       sync.Mutex
	sems     map[string]chan struct{}
	limiters map[string]*rate.Limiter
	size     int
	limit    rate.Limit
}

// NewGate creates a gate allowing size concurrent calls per adapter, with
// call starts paced to rps per second. rps <= 0 disables pacing.
func NewGate(size int, rps float64) *Gate {
	if size <= 0 {
		size = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Gate{
		sems:     make(map[string]chan struct{}),
		limiters: make(map[string]*rate.Limiter),
		size:     size,
		limit:    limit,
	}
}

// Acquire blocks until a slot for the named adapter is free and the pacer
// admits the call, or ctx is done. The returned release function must be
// called exactly once.
func (g *Gate) Acquire(ctx context.Context, name string) (func(), error) {
	g.mu.Lock()
	sem, ok := g.sems[name]
	if !ok {
		sem = make(chan struct{}, g.size)
		g.sems[name] = sem
	}
	limiter, ok := g.limiters[name]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.size)
		g.limiters[name] = limiter
	}
	g.mu.Unlock()

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := limiter.Wait(ctx); err != nil {
		<-sem
		return nil, err
	}
	return func() { <-sem }, nil
}
