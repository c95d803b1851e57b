package wire

import "encoding/json"

// Method identifies one operation of the wallet library's RPC surface.
type Method string

const (
	MethodInit                  Method = "init"
	MethodAddWalletFromMnemonic Method = "addWalletFromMnemonic"
	MethodGetWallets            Method = "getWallets"
	MethodGetWalletState        Method = "getWalletState"
	MethodHandleTonConnectURL   Method = "handleTonConnectUrl"
	MethodApproveConnect        Method = "approveConnect"
	MethodRejectConnect         Method = "rejectConnect"
	MethodApproveTransaction    Method = "approveTransaction"
	MethodRejectTransaction     Method = "rejectTransaction"
	MethodApproveSignData       Method = "approveSignData"
	MethodRejectSignData        Method = "rejectSignData"
	MethodListSessions          Method = "listSessions"
	MethodDisconnectSession     Method = "disconnectSession"
	MethodDestroy               Method = "destroy"
)

// methods is the closed set of operations the script side accepts.
var methods = map[Method]struct{}{
	MethodInit:                  {},
	MethodAddWalletFromMnemonic: {},
	MethodGetWallets:            {},
	MethodGetWalletState:        {},
	MethodHandleTonConnectURL:   {},
	MethodApproveConnect:        {},
	MethodRejectConnect:         {},
	MethodApproveTransaction:    {},
	MethodRejectTransaction:     {},
	MethodApproveSignData:       {},
	MethodRejectSignData:        {},
	MethodListSessions:          {},
	MethodDisconnectSession:     {},
	MethodDestroy:               {},
}

// Valid reports whether m is part of the RPC surface.
func (m Method) Valid() bool {
	_, ok := methods[m]
	return ok
}

// Methods returns the full RPC surface in declaration order.
func Methods() []Method {
	return []Method{
		MethodInit,
		MethodAddWalletFromMnemonic,
		MethodGetWallets,
		MethodGetWalletState,
		MethodHandleTonConnectURL,
		MethodApproveConnect,
		MethodRejectConnect,
		MethodApproveTransaction,
		MethodRejectTransaction,
		MethodApproveSignData,
		MethodRejectSignData,
		MethodListSessions,
		MethodDisconnectSession,
		MethodDestroy,
	}
}

// Kind discriminates inbound messages.
type Kind string

const (
	KindResponse Kind = "response"
	KindEvent    Kind = "event"
	KindReady    Kind = "ready"
)

// EventType identifies one script-originated event.
type EventType string

const (
	EventConnectRequest     EventType = "connectRequest"
	EventTransactionRequest EventType = "transactionRequest"
	EventSignDataRequest    EventType = "signDataRequest"
	EventDisconnect         EventType = "disconnect"
)

var eventTypes = map[EventType]struct{}{
	EventConnectRequest:     {},
	EventTransactionRequest: {},
	EventSignDataRequest:    {},
	EventDisconnect:         {},
}

// Valid reports whether t is a recognized event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Call is the outgoing envelope for one native-initiated RPC call.
type Call struct {
	ID     string          `json:"id"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RemoteError is the error object a response may carry in place of a result.
type RemoteError struct {
	Message string `json:"message"`
	Code    *int   `json:"code,omitempty"`
}

// Event is a script-originated notification.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is a decoded inbound envelope. Exactly the fields implied by
// Kind are populated: Response -> ID and one of Result/Err; Event -> Event;
// Ready -> nothing else.
type Message struct {
	Kind   Kind
	ID     string
	Result json.RawMessage
	Err    *RemoteError
	Event  *Event
}
