package wkbridge

import "context"

// Sink receives raw inbound messages from a script environment.
// Implementations must not panic; a malformed message is the sink's
// problem to absorb, not the transport's.
type Sink interface {
	OnMessage(text string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(text string)

func (f SinkFunc) OnMessage(text string) { f(text) }

// Transport moves envelope text into and out of one script-execution
// substrate. Implementations pin substrate entry to a single goroutine;
// Deliver may be called from any goroutine and marshals internally.
type Transport interface {
	// Bind registers the sink that receives every inbound message.
	// Must be called before Deliver. Binding twice replaces the sink.
	Bind(sink Sink)

	// Deliver hands one encoded call to the script environment. If the
	// environment is still loading, the text is queued and flushed once
	// the script side comes up; it is never dropped.
	Deliver(text string) error

	// Close tears down the substrate and releases its resources.
	// Idempotent. Queued deliveries are discarded.
	Close(ctx context.Context) error
}
