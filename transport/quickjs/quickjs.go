package quickjs

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tonkit/wkbridge"
	"github.com/tonkit/wkbridge/errors"
	"github.com/tonkit/wkbridge/storage"
)

// DefaultInboxLimit bounds deliveries waiting for the worker.
const DefaultInboxLimit = 256

// maxJobsPerDrain guards against a guest job that schedules itself forever.
const maxJobsPerDrain = 10000

// Config configures a Transport.
type Config struct {
	// Module is the guest binary: QuickJS-ng plus the wallet bundle
	// compiled to WASM.
	Module []byte

	// Store backs the guest's storage bindings. Nil means an in-memory
	// store that lives as long as the transport.
	Store storage.Store

	// Logger may be nil for no-op.
	Logger *zap.Logger

	// InboxLimit caps deliveries waiting for the worker. Zero means
	// DefaultInboxLimit.
	InboxLimit int
}

// guest is the execution substrate the worker drives. The wazero-backed
// implementation lives in guest.go; tests substitute their own.
type guest interface {
	// Start evaluates the wallet bundle. The guest announces readiness by
	// emitting the ready envelope through the host sink.
	Start(ctx context.Context) error

	// Receive hands one envelope text to the script side.
	Receive(ctx context.Context, text string) error

	// Pump runs one pending interpreter job. Returns >0 while more jobs
	// remain, 0 when the queue is empty.
	Pump(ctx context.Context) (int, error)

	// Close disposes the interpreter.
	Close(ctx context.Context) error
}

// Transport implements wkbridge.Transport over an embedded interpreter.
type Transport struct {
	logger *zap.Logger
	g      guest

	inbox  chan string
	stop   chan struct{}
	done   chan struct{}
	closed sync.Once

	mu      sync.Mutex
	sink    wkbridge.Sink
	holding []string // inbound emitted before Bind
	down    bool
}

// New compiles and instantiates the guest module and starts the worker
// goroutine that owns it.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}

	t := newWithGuest(nil, logger, cfg.InboxLimit)
	g, err := newWazeroGuest(ctx, cfg.Module, store, logger, t.emit)
	if err != nil {
		return nil, err
	}
	t.g = g

	go t.run()
	return t, nil
}

// newWithGuest wires the worker plumbing without a substrate; used by New
// and by tests. When g is non-nil the caller still starts run itself.
func newWithGuest(g guest, logger *zap.Logger, inboxLimit int) *Transport {
	if inboxLimit <= 0 {
		inboxLimit = DefaultInboxLimit
	}
	return &Transport{
		logger: logger,
		g:      g,
		inbox:  make(chan string, inboxLimit),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Bind implements wkbridge.Transport. Messages the guest emitted before a
// sink was bound are replayed in order.
func (t *Transport) Bind(sink wkbridge.Sink) {
	t.mu.Lock()
	t.sink = sink
	held := t.holding
	t.holding = nil
	t.mu.Unlock()

	for _, text := range held {
		sink.OnMessage(text)
	}
}

// Deliver implements wkbridge.Transport. The text is queued for the worker
// goroutine; it is never executed on the caller's goroutine.
func (t *Transport) Deliver(text string) error {
	t.mu.Lock()
	down := t.down
	t.mu.Unlock()
	if down {
		return errors.Transport(errors.StageDeliver, "interpreter stopped", nil)
	}

	select {
	case t.inbox <- text:
		return nil
	case <-t.stop:
		return errors.Transport(errors.StageDeliver, "interpreter stopped", nil)
	default:
		return errors.Transport(errors.StageDeliver, "worker inbox full", nil)
	}
}

// Close implements wkbridge.Transport. Blocks until the worker has
// disposed the interpreter. Idempotent.
func (t *Transport) Close(_ context.Context) error {
	t.closed.Do(func() {
		t.mu.Lock()
		t.down = true
		t.mu.Unlock()
		close(t.stop)
	})
	<-t.done
	return nil
}

// emit is the host sink the guest pushes envelopes through. Runs on the
// worker goroutine; the text is already a host-owned copy.
func (t *Transport) emit(text string) {
	t.mu.Lock()
	sink := t.sink
	if sink == nil {
		t.holding = append(t.holding, text)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	sink.OnMessage(text)
}

// run is the worker goroutine: the only place the interpreter is entered.
func (t *Transport) run() {
	defer close(t.done)

	ctx := context.Background()

	failed := false
	if err := t.g.Start(ctx); err != nil {
		t.logger.Error("guest start failed", zap.Error(err))
		t.markDown()
		failed = true
	} else {
		t.drainJobs(ctx)
	}

	for {
		select {
		case <-t.stop:
			t.drainInbox()
			if err := t.g.Close(ctx); err != nil {
				t.logger.Warn("guest close failed", zap.Error(err))
			}
			return
		case text := <-t.inbox:
			if failed {
				continue
			}
			if err := t.g.Receive(ctx, text); err != nil {
				t.logger.Error("guest rejected delivery", zap.Error(err))
				continue
			}
			t.drainJobs(ctx)
		}
	}
}

// drainJobs runs pending interpreter jobs until the queue reports empty.
// The wallet library is promise-heavy; without this, async work would
// stall until the next delivery.
func (t *Transport) drainJobs(ctx context.Context) {
	for i := 0; i < maxJobsPerDrain; i++ {
		n, err := t.g.Pump(ctx)
		if err != nil {
			t.logger.Error("pending job failed", zap.Error(err))
			return
		}
		if n <= 0 {
			return
		}
	}
	t.logger.Warn("job drain hit iteration cap", zap.Int("cap", maxJobsPerDrain))
}

func (t *Transport) drainInbox() {
	for {
		select {
		case <-t.inbox:
		default:
			return
		}
	}
}

func (t *Transport) markDown() {
	t.mu.Lock()
	t.down = true
	t.mu.Unlock()
}

var _ wkbridge.Transport = (*Transport)(nil)
