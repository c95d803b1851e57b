// Package pending tracks in-flight native-to-script RPC calls.
//
// Each registered call gets a freshly minted correlation id and a one-shot
// completion handle the caller awaits. The table guarantees exactly one
// resolution per id: whichever of response, rejection, deadline expiry, or
// CancelAll removes the entry first wins, and every later attempt is a
// logged no-op. Late or duplicate resolutions are expected in practice --
// script-side delivery is not exactly-once across engine restarts -- so
// they must never escalate.
//
// Calls across different ids are independent; responses may arrive in any
// order relative to issuance.
package pending
