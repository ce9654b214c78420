package processor

import "strconv"

// Code is a terminal outcome code delivered through ack and failure
// callbacks. The numeric taxonomy (including the fractional close and
// timeout variants) is part of the observable protocol contract.
type Code float64

// Ack outcome codes.
//
// Notes and responses share one taxonomy: 0 acked, 1 connection closed
// before the ack, 2 ack timeout elapsed. The request leg differs: its
// ack callback reports 0 when the ack arrives and 1 when the ack
// timeout elapses, and is never invoked on connection loss (the failure
// callback covers that case).
const (
	AckArrived          Code = 0 // matching ack received
	AckConnectionClosed Code = 1 // note/response: connection closed before ack
	AckTimedOut         Code = 2 // note/response: ack timeout elapsed
	AckNotSent          Code = 3 // response: processor already closing, nothing sent

	RequestAckTimedOut Code = 1 // request: ack timeout elapsed
)

// Failure codes reported to a request's failure callback. The fraction
// encodes the acknowledgement state at the moment the request died.
const (
	FailureClosed             Code = 1   // closed, no ack requested
	FailureClosedAckArrived   Code = 1.1 // closed, ack had arrived
	FailureClosedAckPending   Code = 1.2 // closed, ack outstanding
	FailureClosedAckTimedOut  Code = 1.3 // closed, ack had timed out
	FailureTimeout            Code = 2   // request timeout, no ack requested
	FailureTimeoutAckArrived  Code = 2.1 // request timeout, ack had arrived
	FailureTimeoutAckPending  Code = 2.2 // request timeout, ack outstanding
	FailureTimeoutAckTimedOut Code = 2.3 // request timeout, ack had timed out
)

// String returns the canonical decimal form of the code ("1.2", "2").
func (c Code) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 64)
}

// ackState tracks the acknowledgement leg of a pending request as an
// explicit state machine. The only legal transitions are
// ackPending → ackArrived and ackPending → ackTimedOut, which makes the
// illegal "arrived and timed out" combination unrepresentable.
type ackState uint8

const (
	ackNotRequested ackState = iota
	ackPending
	ackArrived
	ackTimedOut
)

func (s ackState) String() string {
	switch s {
	case ackNotRequested:
		return "notRequested"
	case ackPending:
		return "pending"
	case ackArrived:
		return "arrived"
	case ackTimedOut:
		return "timedOut"
	default:
		return "unknown"
	}
}

// timeoutCode selects the failure code for a request timeout given the
// acknowledgement state at expiry.
func (s ackState) timeoutCode() Code {
	switch s {
	case ackArrived:
		return FailureTimeoutAckArrived
	case ackPending:
		return FailureTimeoutAckPending
	case ackTimedOut:
		return FailureTimeoutAckTimedOut
	default:
		return FailureTimeout
	}
}

// closeCode selects the failure code for a connection close given the
// acknowledgement state at closure.
func (s ackState) closeCode() Code {
	switch s {
	case ackArrived:
		return FailureClosedAckArrived
	case ackPending:
		return FailureClosedAckPending
	case ackTimedOut:
		return FailureClosedAckTimedOut
	default:
		return FailureClosed
	}
}
