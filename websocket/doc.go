// Package websocket implements the WebSocket protocol (RFC 6455): the
// opening HTTP Upgrade handshake, frame-level encoding/decoding, and the
// full-duplex connection engine that reassembles frames into application
// messages and enforces the protocol's invariants.
//
// The package exposes a message-oriented [Conn] over any
// [io.ReadWriteCloser] byte-stream. TCP acquisition, TLS, URL parsing,
// application routing, and compression are left to the caller — this
// package consumes an already-opened stream and hands back a [Conn]
// whose [Conn.Send] and [Conn.Receive] exchange [Message] values.
//
// [Accept] builds a server-role connection from an inbound stream after
// validating the client's handshake; [Connect] builds a client-role
// connection by dialing a TCP address and performing the client side of
// the handshake. Both hand the stream to a background goroutine ("the
// manager") that owns it exclusively until [Conn.Stop] or a fatal error
// tears it down.
package websocket
