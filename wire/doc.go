// Package wire implements the envelope codec for the bridge protocol.
//
// Outgoing calls and inbound messages are exchanged as single-line JSON
// texts. A call carries a correlation id, a method drawn from a closed
// enumeration, and optional method-specific params:
//
//	{"id":"<uuid>","method":"getWallets","params":{}}
//
// Inbound messages are discriminated by their kind field:
//
//	{"kind":"response","id":"<uuid>","result":{...}}
//	{"kind":"response","id":"<uuid>","error":{"message":"...","code":404}}
//	{"kind":"event","event":{"type":"connectRequest","data":{...}}}
//	{"kind":"ready"}
//
// DecodeMessage performs the single exhaustive decode step for the module:
// unknown kinds, unknown event types, malformed JSON, and responses carrying
// neither result nor error all come back as protocol errors. Nothing outside
// the enumerations ever reaches business logic, and no input makes the
// codec panic.
//
// Binary payloads (signatures, transaction blobs) are hex- or base64-encoded
// strings by the time they reach the codec; it performs no transcoding.
package wire
