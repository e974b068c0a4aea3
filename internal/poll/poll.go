// Package poll tracks keyed, cancellable, fixed-delay background pollers.
// The registry is owned by the component that created it and must be torn
// down with StopAll when that component goes away.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per poll interval. Returning done stops and
// removes the poller. A returned error is swallowed and the poller stays
// scheduled for its next tick; transient network blips must never kill a
// poller.
type TickFunc func(ctx context.Context) (done bool, err error)

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry manages at most one active poller per key.
type Registry struct {
	mu      sync.Mutex
	pollers map[string]*poller
	log     zerolog.Logger
}

// NewRegistry creates an empty poller registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		pollers: make(map[string]*poller),
		log:     log,
	}
}

// Start registers a poller under key, cancelling any existing poller for
// that key first. The first invocation of fn happens one interval after
// Start, never immediately, and subsequent ticks are fixed-delay relative
// to the completion of the previous one, so ticks for a single key never
// overlap. The replaced poller's fn is guaranteed not to fire again.
func (r *Registry) Start(key string, interval time.Duration, fn TickFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	prev := r.pollers[key]
	if prev != nil {
		prev.cancel()
	}
	r.pollers[key] = p
	r.mu.Unlock()

	go func() {
		defer close(p.done)
		// Wait out a cancelled predecessor so ticks under one key stay
		// strictly sequential even across replacement.
		if prev != nil {
			<-prev.done
		}
		r.run(ctx, key, interval, fn, p)
	}()
}

func (r *Registry) run(ctx context.Context, key string, interval time.Duration, fn TickFunc, p *poller) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		// The timer and cancellation can race; a cancelled poller must not
		// fire one last time.
		if ctx.Err() != nil {
			return
		}

		done, err := fn(ctx)
		if err != nil {
			r.log.Debug().Str("key", key).Err(err).Msg("poll tick failed, retrying next tick")
		}
		if done {
			r.remove(key, p)
			return
		}
		timer.Reset(interval)
	}
}

// remove deletes the entry only if it still belongs to this poller; a
// replacement may already own the key.
func (r *Registry) remove(key string, p *poller) {
	r.mu.Lock()
	if cur, ok := r.pollers[key]; ok && cur == p {
		delete(r.pollers, key)
	}
	r.mu.Unlock()
}

// Stop cancels and removes the poller under key. Unknown keys are a no-op.
func (r *Registry) Stop(key string) {
	r.mu.Lock()
	p, ok := r.pollers[key]
	if ok {
		p.cancel()
		delete(r.pollers, key)
	}
	r.mu.Unlock()
}

// StopAll cancels every active poller. Used at teardown; a leaked poller
// mutating state after its owner is gone is a defect.
func (r *Registry) StopAll() {
	r.mu.Lock()
	for key, p := range r.pollers {
		p.cancel()
		delete(r.pollers, key)
	}
	r.mu.Unlock()
}

// Has reports whether a poller is registered under key.
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pollers[key]
	return ok
}

// Keys returns the keys of all registered pollers.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.pollers))
	for k := range r.pollers {
		keys = append(keys, k)
	}
	return keys
}
