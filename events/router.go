package events

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/tonkit/wkbridge/wire"
)

// Listener receives script-originated events.
//
// Dedup and removal work by interface identity, so listeners should be
// pointer types (NewListener returns one). A listener of an uncomparable
// dynamic type is accepted but never deduplicated, and cannot be removed
// individually.
type Listener interface {
	OnWalletEvent(ev wire.Event)
}

// NewListener adapts a function to the Listener interface. Each call
// returns a distinct listener instance; dedup is by instance identity.
func NewListener(f func(ev wire.Event)) Listener {
	return &funcListener{fn: f}
}

type funcListener struct {
	fn func(ev wire.Event)
}

func (l *funcListener) OnWalletEvent(ev wire.Event) { l.fn(ev) }

// AddResult reports the outcome of a registration.
type AddResult struct {
	// First is true when the set was empty before this add.
	First bool
	// Already is true when the same listener instance was present; the
	// set is unchanged in that case.
	Already bool
}

// RemoveResult reports the outcome of a removal.
type RemoveResult struct {
	// Removed is true when the listener was present.
	Removed bool
	// Empty is true when the set is empty after the call.
	Empty bool
}

// Router maintains the listener set and dispatches events to it.
type Router struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

// NewRouter creates an empty router. logger may be nil.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{logger: logger}
}

// Add registers a listener. Identity-deduplicated: the same instance is
// never inserted twice.
func (r *Router) Add(l Listener) AddResult {
	if l == nil {
		return AddResult{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.listeners {
		if sameListener(existing, l) {
			return AddResult{Already: true}
		}
	}
	first := len(r.listeners) == 0
	r.listeners = append(r.listeners, l)
	return AddResult{First: first}
}

// Remove deregisters a listener. Removing an absent listener is a no-op.
func (r *Router) Remove(l Listener) RemoveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.listeners {
		if sameListener(existing, l) {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return RemoveResult{Removed: true, Empty: len(r.listeners) == 0}
		}
	}
	return RemoveResult{Empty: len(r.listeners) == 0}
}

// sameListener is identity comparison that tolerates uncomparable dynamic
// types; == on those would panic.
func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

// Len returns the number of registered listeners.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Dispatch delivers ev to every registered listener. Listener failures are
// isolated: a panic is logged and the remaining listeners still run.
func (r *Router) Dispatch(ev wire.Event) {
	r.mu.RLock()
	snapshot := make([]Listener, len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.RUnlock()

	for _, l := range snapshot {
		r.dispatchOne(l, ev)
	}
}

func (r *Router) dispatchOne(l Listener, ev wire.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("event listener panicked",
				zap.String("event", string(ev.Type)),
				zap.Any("panic", rec))
		}
	}()
	l.OnWalletEvent(ev)
}
