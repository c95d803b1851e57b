// Package socket binds the bridge to a script host reached over WebSocket.
//
// This is the browser-engine flavor of the transport contract: the wallet
// bundle runs inside a page (or off-screen web view shell) that connects to
// the host over a WebSocket, and every envelope travels as one text frame.
// The substrate's mandated single execution thread maps to the one writer
// goroutine gorilla/websocket requires; Deliver can be called from any
// goroutine and hands frames to that writer.
//
// Until a connection is attached, delivered frames queue in order and flush
// on attach; they are never dropped while the transport is open. If the
// peer drops, the transport detaches and queues again, so a reconnecting
// script host picks up where it left off.
//
// Attach accepts any established *websocket.Conn; Handler and Dial cover
// the serve and connect directions.
package socket
