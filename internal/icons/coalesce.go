package icons

import (
	"context"
	"sync"
)

// flight is one in-progress upstream fetch that concurrent callers share.
type flight struct {
	done chan struct{}
	body []byte
	err  error
}

// coalescer collapses concurrent fetches of the same asset URL into one
// upstream call. A burst of dashboards asking for the same icon on a cold
// cache produces a single fetch; the rest wait for its result.
type coalescer struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newCoalescer() *coalescer {
	return &coalescer{flights: make(map[string]*flight)}
}

// Do runs fn for key unless a call for the same key is already in progress,
// in which case it waits for that call's result. Waiters honor ctx
// cancellation; the leader runs fn to completion so its result can serve
// everyone who joined the flight.
func (c *coalescer) Do(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	if f, ok := c.flights[key]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.body, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	c.flights[key] = f
	c.mu.Unlock()

	f.body, f.err = fn()
	close(f.done)

	c.mu.Lock()
	delete(c.flights, key)
	c.mu.Unlock()

	return f.body, f.err
}
