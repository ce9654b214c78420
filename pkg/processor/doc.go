// Package processor implements the Reliwire protocol engine: an
// application-level reliability layer on top of a duplex message
// transport that guarantees neither delivery confirmation nor liveness.
//
// The engine adds three capabilities the raw transport lacks:
//
//   - Fire-and-forget notes and request/response exchanges, each
//     optionally acknowledged by the peer.
//   - Per-message and per-acknowledgement timeouts that deterministically
//     resolve every outstanding operation, even when the connection dies
//     silently.
//   - Adaptive heartbeats that detect a half-open or hung connection
//     faster than the transport itself would.
//
// # Model
//
// One Processor owns one transport connection. The transport owner feeds
// inbound messages to HandleRaw and closure notifications to
// HandleTransportClosed; outbound traffic goes through the Transport
// contract. Every outstanding operation (note awaiting ack, request
// awaiting response, response awaiting ack) is tracked under a unique
// stamp and is resolved exactly once, with a numeric outcome code, by
// whichever of {matching message, timeout, connection close} happens
// first.
//
// # Concurrency
//
// A single mutex serializes all state transitions: inbound dispatch,
// timer callbacks and outbound sends execute as non-overlapping steps.
// Application callbacks are queued during a step and invoked after the
// lock is released, so a callback may freely call back into the
// Processor. Instances share no state; run one per connection.
package processor
