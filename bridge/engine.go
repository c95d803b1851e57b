package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tonkit/wkbridge"
	"github.com/tonkit/wkbridge/errors"
	"github.com/tonkit/wkbridge/events"
	"github.com/tonkit/wkbridge/pending"
	"github.com/tonkit/wkbridge/wire"
)

// DefaultCallTimeout bounds each call when Options.CallTimeout is zero.
// The slowest operation observed against the real wallet bundle exceeded
// one second, so the default stays generous to avoid false timeouts.
const DefaultCallTimeout = 30 * time.Second

// State is the engine lifecycle state. Transitions are monotonic; there is
// no way back from Destroyed.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Options configures an Engine.
type Options struct {
	// CallTimeout is the per-call deadline. Zero means DefaultCallTimeout;
	// negative disables the deadline entirely.
	CallTimeout time.Duration

	// Logger receives protocol-drop and lifecycle logs. Nil means no-op.
	Logger *zap.Logger
}

// Engine mediates native calls to the script environment and script events
// to native listeners. Safe for concurrent use.
type Engine struct {
	transport wkbridge.Transport
	table     *pending.Table
	router    *events.Router
	logger    *zap.Logger
	timeout   time.Duration

	mu     sync.Mutex
	state  State
	queued []queuedCall
}

// queuedCall is one encoded call held back until the script side is ready.
// The id lets a failed flush reject its pending entry instead of leaving
// the caller waiting.
type queuedCall struct {
	id   string
	text string
}

// New creates an engine over the given transport and binds itself as the
// transport's sink. The engine starts Uninitialized; call Start.
func New(transport wkbridge.Transport, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.CallTimeout
	if timeout == 0 {
		timeout = DefaultCallTimeout
	} else if timeout < 0 {
		timeout = 0
	}

	e := &Engine{
		transport: transport,
		table:     pending.New(),
		router:    events.NewRouter(logger),
		logger:    logger,
		timeout:   timeout,
	}
	transport.Bind(e)
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start moves the engine into Loading. The transition to Ready happens when
// the script side pushes its ready envelope. Idempotent while live; fails
// once destroyed.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateDestroyed:
		return errors.Destroyed(errors.StageLifecycle)
	case StateUninitialized:
		e.state = StateLoading
		e.logger.Info("bridge loading")
	}
	return nil
}

// Call issues one RPC against the script environment and suspends until
// the correlated response arrives, the deadline elapses, or the engine is
// destroyed. params may be nil for parameterless methods.
func (e *Engine) Call(ctx context.Context, method wire.Method, params json.RawMessage) (json.RawMessage, error) {
	if e.State() == StateDestroyed {
		return nil, errors.Destroyed(errors.StageCall)
	}

	handle := e.table.Register(string(method), e.timeout)
	text, err := wire.EncodeCall(handle.ID(), method, params)
	if err != nil {
		e.table.Reject(handle.ID(), err)
		return nil, err
	}

	if err := e.dispatchOut(handle.ID(), text); err != nil {
		e.table.Reject(handle.ID(), err)
		return nil, err
	}

	return handle.Await(ctx)
}

// dispatchOut hands the encoded call to the transport, or queues it while
// the script side is still loading.
func (e *Engine) dispatchOut(id, text string) error {
	e.mu.Lock()
	switch e.state {
	case StateDestroyed:
		e.mu.Unlock()
		return errors.Destroyed(errors.StageDeliver)
	case StateReady:
		e.mu.Unlock()
		if err := e.transport.Deliver(text); err != nil {
			return errors.Transport(errors.StageDeliver, "deliver call", err)
		}
		return nil
	default:
		e.queued = append(e.queued, queuedCall{id: id, text: text})
		n := len(e.queued)
		e.mu.Unlock()
		e.logger.Debug("call queued until ready", zap.Int("queued", n))
		return nil
	}
}

// OnMessage implements wkbridge.Sink: the single entry point for every
// inbound message. Never panics into the delivering goroutine.
func (e *Engine) OnMessage(text string) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("panic handling inbound message", zap.Any("panic", rec))
		}
	}()

	msg, err := wire.DecodeMessage(text)
	if err != nil {
		e.logger.Warn("dropping undecodable message", zap.Error(err))
		return
	}

	switch msg.Kind {
	case wire.KindReady:
		e.onReady()
	case wire.KindResponse:
		e.onResponse(msg)
	case wire.KindEvent:
		e.router.Dispatch(*msg.Event)
	}
}

func (e *Engine) onReady() {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return
	}
	if e.state == StateReady {
		e.mu.Unlock()
		e.logger.Debug("duplicate ready ignored")
		return
	}
	e.state = StateReady
	flush := e.queued
	e.queued = nil
	e.mu.Unlock()

	e.logger.Info("bridge ready", zap.Int("flushing", len(flush)))
	for _, qc := range flush {
		if err := e.transport.Deliver(qc.text); err != nil {
			e.logger.Warn("flush delivery failed", zap.Error(err))
			e.table.Reject(qc.id, errors.Transport(errors.StageDeliver, "deliver queued call", err))
		}
	}
}

func (e *Engine) onResponse(msg *wire.Message) {
	if msg.Err != nil {
		e.table.Reject(msg.ID, errors.Remote("", msg.Err.Message, msg.Err.Code))
		return
	}
	e.table.Resolve(msg.ID, msg.Result)
}

// Registration is the opaque handle returned by AddListener. Closing it
// removes the listener; closing twice is safe.
type Registration struct {
	engine   *Engine
	listener events.Listener
	once     sync.Once
}

// Close removes the registered listener from the router.
func (r *Registration) Close() {
	r.once.Do(func() {
		r.engine.router.Remove(r.listener)
	})
}

// AddListener registers a listener for script-originated events. Adding
// the same listener instance twice yields a second handle but no duplicate
// deliveries.
func (e *Engine) AddListener(l events.Listener) *Registration {
	res := e.router.Add(l)
	if res.First {
		e.logger.Debug("first event listener registered")
	}
	return &Registration{engine: e, listener: l}
}

// RemoveListener closes the registration. Equivalent to handle.Close.
func (e *Engine) RemoveListener(handle *Registration) {
	if handle != nil {
		handle.Close()
	}
}

// Destroy tears the engine down: cancels every in-flight call with a
// destroyed error, drops queued calls, and closes the transport.
// Idempotent; subsequent Calls fail fast without reaching the transport.
func (e *Engine) Destroy(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateDestroyed
	dropped := len(e.queued)
	e.queued = nil
	e.mu.Unlock()

	cancelled := e.table.CancelAll(errors.Destroyed(errors.StageCall))
	e.logger.Info("bridge destroyed",
		zap.Int("cancelled", cancelled),
		zap.Int("droppedQueued", dropped))

	if err := e.transport.Close(ctx); err != nil {
		return errors.Transport(errors.StageLifecycle, "close transport", err)
	}
	return nil
}
