package pending

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tonkit/wkbridge/errors"
)

// outcome is the single value a completion slot ever carries.
type outcome struct {
	result json.RawMessage
	err    error
}

type entry struct {
	method    string
	createdAt time.Time
	done      chan outcome
	timer     *time.Timer
}

// Handle is the caller side of one registered call.
type Handle struct {
	id    string
	table *Table
	done  <-chan outcome
}

// ID returns the correlation id embedded in the outgoing envelope.
func (h Handle) ID() string { return h.id }

// Await blocks until the call resolves or ctx is done. On ctx expiry the
// entry is rejected and removed so the table never leaks abandoned calls;
// a context deadline surfaces as a timeout error, a plain cancellation as
// the context error itself.
func (h Handle) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case out := <-h.done:
		return out.result, out.err
	case <-ctx.Done():
		var err error
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.Timeout(h.table.methodOf(h.id), "context deadline elapsed")
		} else {
			err = ctx.Err()
		}
		h.table.Reject(h.id, err)
		// The rejection may have lost the race with a real resolution;
		// the slot holds whichever outcome won.
		select {
		case out := <-h.done:
			return out.result, out.err
		default:
			return nil, err
		}
	}
}

// Table is the pending-call table: a concurrency-safe map from correlation
// id to a one-shot completion slot.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Register mints a fresh correlation id, inserts a pending call, and
// returns the handle to await. A positive deadline arms a timer that
// self-rejects the entry with a timeout error on expiry; zero disables it.
func (t *Table) Register(method string, deadline time.Duration) Handle {
	id := uuid.NewString()
	e := &entry{
		method:    method,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}

	t.mu.Lock()
	t.entries[id] = e
	t.mu.Unlock()

	if deadline > 0 {
		e.timer = time.AfterFunc(deadline, func() {
			if t.Reject(id, errors.Timeout(method, "no response within "+deadline.String())) {
				log().Warn("pending call timed out",
					zap.String("id", id),
					zap.String("method", method),
					zap.Duration("deadline", deadline))
			}
		})
	}

	return Handle{id: id, table: t, done: e.done}
}

// Resolve completes the call with a result. Unknown ids (already resolved,
// timed out, or from a stale session) are logged no-ops.
func (t *Table) Resolve(id string, result json.RawMessage) bool {
	e := t.take(id)
	if e == nil {
		log().Debug("response for unknown correlation id", zap.String("id", id))
		return false
	}
	e.done <- outcome{result: result}
	return true
}

// Reject completes the call with an error. Unknown ids are logged no-ops.
func (t *Table) Reject(id string, err error) bool {
	e := t.take(id)
	if e == nil {
		log().Debug("rejection for unknown correlation id", zap.String("id", id))
		return false
	}
	e.done <- outcome{err: err}
	return true
}

// CancelAll rejects every still-pending entry with err. Used on engine
// destroy so no caller blocks forever; returns the number of calls drained.
func (t *Table) CancelAll(err error) int {
	t.mu.Lock()
	drained := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	for id, e := range drained {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.done <- outcome{err: err}
		log().Debug("pending call cancelled",
			zap.String("id", id),
			zap.String("method", e.method))
	}
	return len(drained)
}

// Len returns the number of in-flight calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// take removes and returns the entry for id, or nil. Removal under the
// lock is what makes resolution exactly-once: only one caller ever sees
// the entry.
func (t *Table) take(id string) *entry {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	return e
}

func (t *Table) methodOf(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		return e.method
	}
	return ""
}
