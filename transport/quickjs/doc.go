// Package quickjs binds the bridge to a QuickJS-ng interpreter compiled to
// WebAssembly and embedded through wazero.
//
// This is the embedded-interpreter flavor of the transport contract. The
// wallet bundle is baked into the guest module; the guest exports a small
// ABI the transport drives:
//
//	wk_start()                  evaluate the bundle, register the sink
//	wk_receive(ptr, len)        deliver one envelope text
//	wk_pump() -> i32            run one pending job; >0 when more remain
//	wk_alloc(size) -> ptr       guest-side allocation for host writes
//	wk_free(ptr, size)          release a wk_alloc'd block
//
// and imports host functions under the "walletkit" namespace: emit (guest
// pushes an envelope to the host), storage get/set/remove (backed by a
// storage.Store), and log.
//
// The interpreter is not safe for concurrent entry, so one long-lived
// worker goroutine owns the instance exclusively; Deliver marshals onto it
// through a bounded inbox. After every delivery the worker drains the
// interpreter's pending-job queue, which is what keeps the promise-heavy
// wallet library progressing without a host-driven event loop. Host
// callbacks copy guest memory before returning; the interpreter may
// reclaim the buffer as soon as the callback is done.
package quickjs
