// Package wkbridge provides the transport layer between native Go code and
// a JavaScript wallet library running inside a script-execution substrate.
//
// The wallet library itself (mnemonic derivation, TON transaction building,
// blockchain queries) is an external collaborator reached over a JSON
// envelope protocol; this module only moves envelopes, correlates calls with
// responses, and fans script-originated events out to native listeners.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	wkbridge/            Root package with the Transport and Sink contracts
//	├── bridge/          Bridge engine: call/await RPC surface and lifecycle
//	├── wire/            Envelope codec between Go values and wire JSON
//	├── pending/         Pending-call table keyed by correlation id
//	├── events/          Event router: listener registration and fan-out
//	├── transport/
//	│   ├── socket/      WebSocket binding to a remote script host
//	│   └── quickjs/     Embedded QuickJS-ng interpreter via wazero
//	├── storage/         Key/value backends lent to the script environment
//	├── errors/          Structured error types for the bridge taxonomy
//	└── config/          Configuration loading for the CLI
//
// # Quick Start
//
// Create an engine over a transport and issue calls:
//
//	tr, err := quickjs.New(ctx, quickjs.Config{Module: wasmBytes})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := bridge.New(tr, bridge.Options{})
//	defer eng.Destroy(ctx)
//
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := eng.Call(ctx, wire.MethodGetWallets, nil)
//
// Listen for script-originated events:
//
//	handle := eng.AddListener(events.NewListener(func(ev wire.Event) {
//	    fmt.Println(ev.Type)
//	}))
//	defer handle.Close()
//
// # Message Flow
//
// Outgoing: Call mints a correlation id in the pending table, encodes a
// call envelope, and hands the text to the active Transport. Incoming: the
// Transport invokes the engine's sink with each raw message; the engine
// decodes it and resolves a pending call (response), dispatches to
// listeners (event), or flips the lifecycle to ready (ready).
//
// # Thread Safety
//
// The bridge engine, pending table, and event router are safe for
// concurrent use. A Transport implementation owns its script substrate
// exclusively and serializes all substrate entry onto a single goroutine;
// callers never touch the substrate directly.
package wkbridge
