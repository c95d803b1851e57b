package socket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tonkit/wkbridge"
	"github.com/tonkit/wkbridge/errors"
)

// DefaultQueueLimit bounds frames held while no connection is attached.
const DefaultQueueLimit = 256

// DefaultWriteTimeout bounds each frame write.
const DefaultWriteTimeout = 10 * time.Second

// Config configures a Transport.
type Config struct {
	// Logger may be nil for no-op.
	Logger *zap.Logger

	// QueueLimit caps frames queued while detached and the writer outbox.
	// Zero means DefaultQueueLimit.
	QueueLimit int

	// WriteTimeout bounds a single frame write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// session is one attached connection with its dedicated writer.
type session struct {
	conn   *websocket.Conn
	outbox chan string
	stop   chan struct{}
	once   sync.Once
}

// Transport implements wkbridge.Transport over a WebSocket peer.
type Transport struct {
	logger       *zap.Logger
	queueLimit   int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu      sync.Mutex
	sink    wkbridge.Sink
	session *session
	queue   []string
	closed  bool
}

// New creates a detached transport. Frames delivered before Attach queue
// up to Config.QueueLimit.
func New(cfg Config) *Transport {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.QueueLimit
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Transport{
		logger:       logger,
		queueLimit:   limit,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Bind implements wkbridge.Transport.
func (t *Transport) Bind(sink wkbridge.Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Deliver implements wkbridge.Transport. The frame goes to the writer
// goroutine when attached, otherwise into the detached queue.
func (t *Transport) Deliver(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.Transport(errors.StageDeliver, "transport closed", nil)
	}

	if t.session != nil {
		select {
		case t.session.outbox <- text:
			return nil
		default:
			return errors.Transport(errors.StageDeliver, "writer outbox full", nil)
		}
	}

	if len(t.queue) >= t.queueLimit {
		return errors.Transport(errors.StageDeliver, "detached queue full", nil)
	}
	t.queue = append(t.queue, text)
	return nil
}

// Attach adopts an established connection and starts its reader and writer.
// Queued frames flush in order. Only one connection may be attached at a
// time.
func (t *Transport) Attach(conn *websocket.Conn) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.Transport(errors.StageLifecycle, "transport closed", nil)
	}
	if t.session != nil {
		t.mu.Unlock()
		return errors.Transport(errors.StageLifecycle, "script host already attached", nil)
	}

	s := &session{
		conn:   conn,
		outbox: make(chan string, t.queueLimit),
		stop:   make(chan struct{}),
	}
	for _, text := range t.queue {
		s.outbox <- text
	}
	t.queue = nil
	t.session = s
	t.mu.Unlock()

	t.logger.Info("script host attached", zap.String("remote", conn.RemoteAddr().String()))
	go t.writeLoop(s)
	go t.readLoop(s)
	return nil
}

// Handler returns an http.Handler that upgrades the request and attaches
// the resulting connection.
func (t *Transport) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Warn("upgrade failed", zap.Error(err))
			return
		}
		if err := t.Attach(conn); err != nil {
			t.logger.Warn("attach rejected", zap.Error(err))
			_ = conn.Close()
		}
	})
}

// Dial connects to a script host serving at url and attaches.
func (t *Transport) Dial(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Transport(errors.StageLifecycle, "dial "+url, err)
	}
	if err := t.Attach(conn); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// Close implements wkbridge.Transport. Idempotent; queued frames are
// discarded.
func (t *Transport) Close(_ context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	s := t.session
	t.queue = nil
	t.mu.Unlock()

	if s != nil {
		t.detach(s)
	}
	return nil
}

// writeLoop is the single goroutine allowed to write frames, mirroring the
// substrate's one execution thread.
func (t *Transport) writeLoop(s *session) {
	for {
		select {
		case <-s.stop:
			return
		case text := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				t.logger.Warn("frame write failed", zap.Error(err))
				t.detach(s)
				return
			}
		}
	}
}

func (t *Transport) readLoop(s *session) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
			default:
				t.logger.Warn("connection lost", zap.Error(err))
			}
			t.detach(s)
			return
		}
		if kind != websocket.TextMessage {
			t.logger.Debug("ignoring non-text frame", zap.Int("type", kind))
			continue
		}

		t.mu.Lock()
		sink := t.sink
		t.mu.Unlock()
		if sink != nil {
			sink.OnMessage(string(data))
		}
	}
}

func (t *Transport) detach(s *session) {
	s.once.Do(func() {
		close(s.stop)
		_ = s.conn.Close()
	})
	t.mu.Lock()
	if t.session == s {
		t.session = nil
	}
	t.mu.Unlock()
}

var _ wkbridge.Transport = (*Transport)(nil)
