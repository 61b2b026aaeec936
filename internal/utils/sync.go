package utils

import (
	"context"
	"sync"
	"time"
)

// GroupCAS indicates cas locks which are grouped by keys.
type GroupCAS struct {
	sync.Mutex
	locks map[string]struct{}
}

// NewGroupCAS .
func NewGroupCAS() *GroupCAS {
	return &GroupCAS{
		locks: map[string]struct{}{},
	}
}

// Acquire tries to acquire a cas lock.
func (g *GroupCAS) Acquire(key string) (free func(), acquired bool) {
	g.Lock()
	defer g.Unlock()

	if _, ok := g.locks[key]; ok {
		return nil, false
	}

	g.locks[key] = struct{}{}
	free = func() {
		g.Lock()
		defer g.Unlock()
		delete(g.locks, key)
	}

	return free, true
}

// WithTimeout runs f under a derived context with the given timeout.
func WithTimeout(ctx context.Context, timeout time.Duration, f func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	f(ctx)
}
