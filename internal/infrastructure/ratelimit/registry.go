package ratelimit

import (
	"sync"

	"poslink-core/internal/ports"
)

// Registry hands out one limiter per integration, created lazily on first
// use. All limiters share the same window configuration but none of the
// same state.
type Registry struct {
	mu        sync.Mutex
	perSecond int
	perMinute int
	opts      []Option
	limiters  map[string]*DualWindowLimiter
}

var _ ports.RateLimiterProvider = (*Registry)(nil)

// NewRegistry creates a registry whose limiters allow perSecond burst and
// perMinute sustained operations each.
func NewRegistry(perSecond, perMinute int, opts ...Option) *Registry {
	return &Registry{
		perSecond: perSecond,
		perMinute: perMinute,
		opts:      opts,
		limiters:  make(map[string]*DualWindowLimiter),
	}
}

// LimiterFor returns the integration's own limiter, creating it on first
// use.
func (r *Registry) LimiterFor(integrationID string) ports.RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.limiters[integrationID]
	if !ok {
		limiter = New(r.perSecond, r.perMinute, r.opts...)
		r.limiters[integrationID] = limiter
	}
	return limiter
}
