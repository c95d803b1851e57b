// Package bridge implements the engine native code talks to.
//
// The engine owns the pending-call table and the event router, and is
// polymorphic over the transport binding: callers cannot tell whether the
// script environment behind Call is a remote WebSocket host or an embedded
// interpreter.
//
// # Lifecycle
//
// An engine moves monotonically through four states:
//
//	Uninitialized --Start--> Loading --ready envelope--> Ready --Destroy--> Destroyed
//
// Calls issued while Loading are encoded and queued, then flushed in order
// when the script side announces ready. Calls issued after Destroy fail
// immediately with a destroyed error and never reach the transport.
// Destroy cancels every in-flight call synchronously; no caller is left
// blocked after it returns.
//
// # Calls
//
// Call suspends the calling goroutine until the matching response envelope
// arrives, the per-call deadline elapses, or the engine is destroyed. Each
// call is correlated independently; responses may resolve out of issuance
// order without cross-wiring.
//
// # Inbound messages
//
// OnMessage is the single entry point transports invoke. A malformed or
// unexpected message is logged and dropped there; it can never crash the
// delivery goroutine or disturb unrelated pending calls.
package bridge
