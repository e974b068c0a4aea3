// Package engine is the unified task lifecycle engine behind the Tools
// view. It merges the gateway's todo and feature collections into one work
// item list, drives items through their approval workflows, and tracks
// long-running gateway operations with keyed pollers.
//
// The merged list is a client cache; the gateway is authoritative. Local
// mutations are optimistic and the periodic full reload overwrites
// whatever disagrees with the server.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/notify"
	"github.com/aechclawbot/opsdash/internal/poll"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

var (
	// ErrNotFound means the referenced work item is not in the merged list.
	ErrNotFound = errors.New("work item not found")
	// ErrIllegalAction means the action is not legal for the item's status.
	ErrIllegalAction = errors.New("action not legal for current status")
	// ErrEmptyTitle rejects creates with a blank title before any network call.
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrNoFindingsSelected rejects audit bridge calls with nothing selected.
	ErrNoFindingsSelected = errors.New("no findings selected")
)

// Config holds the engine's tuning intervals. Both are arbitrary tuning
// constants, not correctness invariants, and may be changed at runtime.
type Config struct {
	PollInterval    time.Duration
	RefreshInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 30 * time.Second
	}
	return c
}

// Engine owns the in-memory work item list and every background poller.
// All list mutation is whole-list or single-item replacement; items handed
// out are copies.
type Engine struct {
	client   *gateway.Client
	polls    *poll.Registry
	notifier notify.Notifier
	log      zerolog.Logger

	mu       sync.Mutex
	cfg      Config
	items    []workitem.WorkItem
	reports  map[gateway.AuditKind]*gateway.AuditReport
	selected map[gateway.AuditKind]map[string]bool
	output   map[string]string // poller key -> latest progress buffer

	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
	closeOnce     sync.Once
}

// New creates an engine. The poll registry is created here and torn down
// by Close; nothing outside the engine starts pollers.
func New(client *gateway.Client, notifier notify.Notifier, log zerolog.Logger, cfg Config) *Engine {
	return &Engine{
		client:   client,
		polls:    poll.NewRegistry(log),
		notifier: notifier,
		log:      log,
		cfg:      cfg.withDefaults(),
		reports:  make(map[gateway.AuditKind]*gateway.AuditReport),
		selected: make(map[gateway.AuditKind]map[string]bool),
		output:   make(map[string]string),
	}
}

// Start performs the initial load and begins the periodic full refresh.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.refreshCancel = cancel
	e.refreshDone = make(chan struct{})

	e.Refresh(ctx)

	go func() {
		defer close(e.refreshDone)
		for {
			timer := time.NewTimer(e.refreshInterval())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			e.Refresh(ctx)
		}
	}()
}

// Close cancels the refresh loop and every active poller. Leaving the
// Tools view without calling Close leaks timers that keep mutating state.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.refreshCancel != nil {
			e.refreshCancel()
			<-e.refreshDone
		}
		e.polls.StopAll()
	})
}

// SetIntervals applies new tuning intervals. Running pollers keep their
// old interval until restarted; the refresh loop picks the change up on
// its next cycle.
func (e *Engine) SetIntervals(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) pollInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.PollInterval
}

func (e *Engine) refreshInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.RefreshInterval
}

// Refresh rebuilds the merged list from the gateway. The two collections
// are fetched concurrently and a failed fetch degrades to an empty
// collection for that source only; the other still loads. Whatever the
// server returns overwrites optimistic local state, and pollers for items
// that no longer exist are stopped.
func (e *Engine) Refresh(ctx context.Context) {
	var todos []workitem.Todo
	var features []workitem.Feature

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		list, err := e.client.ListTodos(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("todo fetch failed, using empty collection")
			return
		}
		todos = list
	}()
	go func() {
		defer wg.Done()
		list, err := e.client.ListFeatures(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("feature fetch failed, using empty collection")
			return
		}
		features = list
	}()
	wg.Wait()

	merged := workitem.Merge(todos, features)

	e.mu.Lock()
	e.items = merged
	e.mu.Unlock()

	e.stopOrphanPollers(merged)
}

// stopOrphanPollers cancels per-item pollers whose item vanished from the
// merged list after a reload. Operation-level pollers (qa-run etc.) are
// not item-bound and stay.
func (e *Engine) stopOrphanPollers(items []workitem.WorkItem) {
	live := make(map[string]bool, len(items)*2)
	for _, it := range items {
		switch it.Source {
		case workitem.SourceTodo:
			live[todoPlanKey(it.ID)] = true
			live[todoExecKey(it.ID)] = true
		case workitem.SourceFeature:
			live[featureKey(it.ID)] = true
		}
	}

	for _, key := range e.polls.Keys() {
		if !strings.HasPrefix(key, "plan-") &&
			!strings.HasPrefix(key, "todo-") &&
			!strings.HasPrefix(key, "feat-") {
			continue
		}
		if !live[key] {
			e.log.Debug().Str("key", key).Msg("stopping poller for vanished item")
			e.polls.Stop(key)
			e.clearOutput(key)
		}
	}
}

// Items returns a snapshot copy of the merged list.
func (e *Engine) Items() []workitem.WorkItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]workitem.WorkItem, len(e.items))
	copy(out, e.items)
	return out
}

// Item looks up one work item by identity. IDs are only unique within a
// source collection, so the source is part of the key.
func (e *Engine) Item(id workitem.ID, src workitem.Source) (workitem.WorkItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range e.items {
		if it.ID == id && it.Source == src {
			return it, true
		}
	}
	return workitem.WorkItem{}, false
}

// InFlight reports whether a poller is active under the given key.
func (e *Engine) InFlight(key string) bool {
	return e.polls.Has(key)
}

// Output returns the latest progress buffer for a poller key. The gateway
// returns the full buffer each tick, so this is replaced, never appended.
func (e *Engine) Output(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.output[key]
}

func (e *Engine) setOutput(key, out string) {
	e.mu.Lock()
	e.output[key] = out
	e.mu.Unlock()
}

func (e *Engine) clearOutput(key string) {
	e.mu.Lock()
	delete(e.output, key)
	e.mu.Unlock()
}

// mutateItem replaces a single item copy-on-write. The slice itself is
// replaced so concurrent readers holding a snapshot never observe partial
// writes.
func (e *Engine) mutateItem(id workitem.ID, src workitem.Source, fn func(*workitem.WorkItem)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].ID == id && e.items[i].Source == src {
			next := make([]workitem.WorkItem, len(e.items))
			copy(next, e.items)
			fn(&next[i])
			e.items = next
			return true
		}
	}
	return false
}

// replaceItem swaps in a full item value, used to revert optimistic writes.
func (e *Engine) replaceItem(prev workitem.WorkItem) {
	e.mutateItem(prev.ID, prev.Source, func(it *workitem.WorkItem) {
		*it = prev
	})
}

// removeItem drops an item from the list after a confirmed delete.
func (e *Engine) removeItem(id workitem.ID, src workitem.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := make([]workitem.WorkItem, 0, len(e.items))
	for _, it := range e.items {
		if it.ID == id && it.Source == src {
			continue
		}
		next = append(next, it)
	}
	e.items = next
}

// prependItem pushes a freshly created record into the list optimistically.
// The next refresh reconciles its position and dedup against the server.
func (e *Engine) prependItem(it workitem.WorkItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := make([]workitem.WorkItem, 0, len(e.items)+1)
	next = append(next, it)
	next = append(next, e.items...)
	e.items = next
}

func todoPlanKey(id workitem.ID) string { return "plan-" + id.String() }
func todoExecKey(id workitem.ID) string { return "todo-" + id.String() }
func featureKey(id workitem.ID) string  { return "feat-" + id.String() }
