package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/heritage/internal/apperr"
)

// Registry owns the live activations, keyed by id.
type Registry struct {
	opts Options
	ctx  context.Context

	mu    sync.Mutex
	items map[string]*Activation
}

// NewRegistry creates a registry. Activations it creates are cancelled when
// ctx is done.
func NewRegistry(ctx context.Context, opts Options) *Registry {
	return &Registry{
		opts:  opts.withDefaults(),
		ctx:   ctx,
		items: make(map[string]*Activation),
	}
}

// Activate creates a fresh activation and starts its load.
func (r *Registry) Activate() *Activation {
	a := NewActivation(r.ctx, uuid.NewString(), r.opts)

	var evicted *Activation
	r.mu.Lock()
	if len(r.items) >= r.opts.MaxActivations {
		evicted = r.evictOldestLocked()
	}
	r.items[a.id] = a
	r.mu.Unlock()

	if evicted != nil {
		r.release(evicted)
	}

	a.Load()
	return a
}

// Get returns the activation with id and marks it active.
func (r *Registry) Get(id string) (*Activation, error) {
	r.mu.Lock()
	a, ok := r.items[id]
	r.mu.Unlock()
	if !ok {
		return nil, apperr.ErrNotFound
	}
	a.Touch(r.opts.now())
	return a, nil
}

// Close tears down and forgets the activation with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	a, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if !ok {
		return apperr.ErrNotFound
	}
	r.release(a)
	return nil
}

// Len returns the number of live activations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep closes activations idle for longer than the TTL and returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*Activation
	r.mu.Lock()
	for id, a := range r.items {
		if now.Sub(a.idleSince()) > r.opts.IdleTTL {
			expired = append(expired, a)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, a := range expired {
		r.release(a)
	}
	return len(expired)
}

// Run sweeps idle activations every interval until ctx is done, then closes
// every remaining activation.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			r.opts.Logger.Info("preview: registry stopped")
			return nil
		case <-ticker.C:
			if n := r.Sweep(r.opts.now()); n > 0 {
				r.opts.Logger.Debug("preview: swept idle activations", slog.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Activation)
	r.mu.Unlock()
	for _, a := range items {
		r.release(a)
	}
}

// evictOldestLocked drops the least recently touched activation from the map
// and returns it for release once r.mu is unlocked.
func (r *Registry) evictOldestLocked() *Activation {
	var oldest *Activation
	for _, a := range r.items {
		if oldest == nil || a.idleSince().Before(oldest.idleSince()) {
			oldest = a
		}
	}
	if oldest != nil {
		delete(r.items, oldest.id)
	}
	return oldest
}

func (r *Registry) release(a *Activation) {
	a.Close()
	if r.opts.OnClose != nil {
		r.opts.OnClose(a.id)
	}
}
