package processor

import (
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
)

// AckFunc receives the terminal acknowledgement outcome of a note,
// request or response leg.
type AckFunc func(code Code)

// SuccessFunc receives a successful response payload.
type SuccessFunc func(payload json.RawMessage)

// FailureFunc receives a failed response: either a peer-assigned
// failure code with its payload, or a local timeout/close code from the
// taxonomy in codes.go (payload nil).
type FailureFunc func(code Code, payload json.RawMessage)

// NoteHandler processes an inbound note payload.
type NoteHandler func(payload json.RawMessage)

// RequestHandler processes an inbound request. It may call respond any
// time later, including after returning; each request accepts at most
// one response.
type RequestHandler func(payload json.RawMessage, respond RespondFunc)

// RespondFunc sends the response for an inbound request. failureCode 0
// means success. If the processor is already closing, nothing is sent,
// ack (if any) resolves with AckNotSent and ErrClosed is returned.
type RespondFunc func(payload any, failureCode float64, opts ResponseOptions, ack AckFunc) error

// NoteOptions configure SendNote.
type NoteOptions struct {
	// SendAck requests a noteAck from the peer.
	SendAck bool

	// AckTimeout bounds the wait for the ack. Zero means
	// DefaultNoteAckTimeout.
	AckTimeout time.Duration
}

// RequestOptions configure SendRequest.
type RequestOptions struct {
	// RequestTimeout bounds the wait for the response. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// SendAck requests a requestAck from the peer.
	SendAck bool

	// AckTimeout bounds the wait for the requestAck. Zero arms no ack
	// timer: the ack may arrive any time before the request resolves.
	// Values above RequestTimeout are anomalous (the ack timer can then
	// never fire before the request itself dies) and are logged.
	AckTimeout time.Duration
}

// ResponseOptions configure the respond function of a request handler.
type ResponseOptions struct {
	// SendAck requests a responseAck from the peer.
	SendAck bool

	// AckTimeout bounds the wait for the ack. Zero means
	// DefaultResponseAckTimeout.
	AckTimeout time.Duration
}

// pendingNote is a sent note awaiting its ack.
type pendingNote struct {
	stamp    string
	ack      AckFunc
	raw      []byte // serialized envelope, kept for diagnostics
	ackTimer *clock.Timer
}

// pendingRequest is a sent request awaiting its response. The entry
// lives until response arrival, request timeout or close; an ack
// timeout mutates state but never removes the entry.
type pendingRequest struct {
	stamp    string
	success  SuccessFunc
	failure  FailureFunc
	ack      AckFunc
	opts     RequestOptions
	state    ackState
	raw      []byte
	reqTimer *clock.Timer
	ackTimer *clock.Timer
}

// pendingResponse is a sent response awaiting its ack.
type pendingResponse struct {
	stamp    string
	ack      AckFunc
	opts     ResponseOptions
	ackTimer *clock.Timer
}

// stopTimer cancels a timer if armed. Every live timer is cancelled
// before its owning entry leaves the store, so a stale callback can
// never fire against a resolved stamp.
func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
