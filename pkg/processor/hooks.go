package processor

import (
	"time"

	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// Hooks receive engine events for observability. All fields are
// optional; nil funcs are skipped. Hooks run while the engine lock is
// held and must not call back into the Processor.
type Hooks struct {
	// MessageSent fires after an envelope is handed to the transport.
	MessageSent func(t wire.MessageType, size int)

	// MessageReceived fires for every successfully decoded inbound envelope.
	MessageReceived func(t wire.MessageType, size int)

	// RequestSent fires when a request envelope is transmitted.
	RequestSent func(stamp string)

	// RequestResolved fires when a pending request reaches its terminal
	// outcome: 0 success, anything else per the failure code taxonomy
	// (peer failure codes included).
	RequestResolved func(stamp string, code Code)

	// NoteAckResolved fires when a pending note's ack callback resolves.
	NoteAckResolved func(code Code)

	// ResponseAckResolved fires when a pending response's ack callback resolves.
	ResponseAckResolved func(code Code)

	// HeartbeatRTT fires for every completed ping/pong round trip.
	HeartbeatRTT func(rtt time.Duration)

	// ProtocolError fires for reported, non-fatal protocol errors
	// (malformed input, unknown or late correlation stamps).
	ProtocolError func(kind string)

	// Closed fires once, when the processor transitions to closed.
	Closed func(byHeartbeat bool)
}

// Merge returns hooks that invoke h's funcs and then other's.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		MessageSent:         mergeFn2(h.MessageSent, other.MessageSent),
		MessageReceived:     mergeFn2(h.MessageReceived, other.MessageReceived),
		RequestSent:         mergeFn1(h.RequestSent, other.RequestSent),
		RequestResolved:     mergeFn2(h.RequestResolved, other.RequestResolved),
		NoteAckResolved:     mergeFn1(h.NoteAckResolved, other.NoteAckResolved),
		ResponseAckResolved: mergeFn1(h.ResponseAckResolved, other.ResponseAckResolved),
		HeartbeatRTT:        mergeFn1(h.HeartbeatRTT, other.HeartbeatRTT),
		ProtocolError:       mergeFn1(h.ProtocolError, other.ProtocolError),
		Closed:              mergeFn1(h.Closed, other.Closed),
	}
}

func mergeFn1[A any](a, b func(A)) func(A) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(v A) { a(v); b(v) }
	}
}

func mergeFn2[A, B any](a, b func(A, B)) func(A, B) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return func(x A, y B) { a(x, y); b(x, y) }
	}
}
