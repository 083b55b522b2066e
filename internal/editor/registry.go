package editor

import (
	"context"
	"sync"
)

// Factory builds the controller for a session on first use.
type Factory func(ctx context.Context, sessionID string) (*Controller, error)

// Registry maps session IDs to their controllers.
type Registry struct {
	factory Factory

	mu     sync.Mutex
	ctrls  map[string]*Controller
	closed bool
}

// NewRegistry returns an empty registry creating controllers with f.
func NewRegistry(f Factory) *Registry {
	return &Registry{factory: f, ctrls: make(map[string]*Controller)}
}

// Get returns the controller of sessionID, creating it and starting its
// first load when needed.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.ctrls[sessionID]; ok {
		return c, nil
	}
	c, err := r.factory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	r.ctrls[sessionID] = c
	c.LoadAsync()
	return c, nil
}

// Lookup returns an existing controller without creating one.
func (r *Registry) Lookup(sessionID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.ctrls[sessionID]
	return c, ok
}

// Drop closes and forgets the controller of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	c, ok := r.ctrls[sessionID]
	delete(r.ctrls, sessionID)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Sweep drops every controller whose session alive reports as gone.
func (r *Registry) Sweep(alive func(sessionID string) bool) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.ctrls))
	for id := range r.ctrls {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if !alive(id) {
			r.Drop(id)
			n++
		}
	}
	return n
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ctrls)
}

// Close closes every controller. Get fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	ctrls := r.ctrls
	r.ctrls = make(map[string]*Controller)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range ctrls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
}
