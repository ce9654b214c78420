// Package transport supplies duplex message transports for the
// protocol engine: a WebSocket client, an adapter for melody server
// sessions, and an in-memory pipe for wiring two engines together in
// tests and examples.
//
// A transport owner delivers inbound traffic to a Receiver (the engine)
// and exposes the engine's outbound contract (Send/Close). Message
// boundaries are preserved; ordering follows the underlying connection.
package transport
