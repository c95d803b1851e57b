// Package errors provides the structured error types used across the bridge.
//
// Every failure surfaced by the bridge carries a Stage (where in processing
// it happened) and a Kind (what category of failure it is), so callers can
// branch on the taxonomy instead of string matching:
//
//	result, err := eng.Call(ctx, wire.MethodGetWallets, nil)
//	if errors.IsKind(err, errors.KindTimeout) {
//	    // retry is reasonable
//	}
//	if re, ok := errors.AsRemote(err); ok {
//	    // the script side rejected the call; re.Message / re.Code
//	}
//
// The five kinds map to distinct failure sources:
//
//	KindTransport  the substrate failed to accept or execute a delivery
//	KindProtocol   a message on the wire was malformed or unrecognized
//	KindRemote     the script side explicitly returned an error object
//	KindTimeout    a call's deadline elapsed with no response
//	KindDestroyed  the engine was torn down before or during the call
//
// Protocol errors are recovered at the engine boundary (logged, dropped)
// and never reach a caller; the other kinds propagate to exactly the caller
// awaiting the affected correlation id.
package errors
