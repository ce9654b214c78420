package processor

import (
	"fmt"

	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// SendNote transmits a one-way note. With opts.SendAck the peer is
// asked for a noteAck and exactly one of {AckArrived,
// AckConnectionClosed, AckTimedOut} resolves ack; without it no pending
// state is created and ack never fires.
func (p *Processor) SendNote(payload any, opts NoteOptions, ack AckFunc) error {
	var err error
	p.step(func() {
		if p.state == stateClosed {
			err = ErrClosed
			return
		}
		data, merr := wire.MarshalData(payload)
		if merr != nil {
			err = fmt.Errorf("processor: marshal note payload: %w", merr)
			return
		}

		stamp := wire.NewStamp()
		raw := p.send(&wire.Envelope{
			Type:    wire.TypeNote,
			Stamp:   stamp,
			Data:    data,
			SendAck: opts.SendAck,
		})
		if !opts.SendAck {
			return
		}

		timeout := opts.AckTimeout
		if timeout <= 0 {
			timeout = DefaultNoteAckTimeout
		}
		n := &pendingNote{stamp: stamp, ack: ack, raw: raw}
		n.ackTimer = p.clk.AfterFunc(timeout, func() {
			p.step(func() { p.onNoteAckTimeout(stamp) })
		})
		p.store.putNote(n)
	})
	return err
}

// onNoteAckTimeout resolves a pending note with AckTimedOut. The note
// itself is not retried.
func (p *Processor) onNoteAckTimeout(stamp string) {
	n := p.store.removeNote(stamp)
	if n == nil {
		return
	}
	p.log.Debug("note ack timeout", "stamp", stamp)
	p.resolveNoteAck(n, AckTimedOut)
}

// SendRequest transmits a request and tracks it until exactly one of
// {response arrival, request timeout, connection close} resolves it
// through success or failure. With opts.SendAck the peer is asked for a
// requestAck; ack then reports AckArrived or, if opts.AckTimeout > 0
// elapses first, RequestAckTimedOut. An ack timeout never resolves the
// request itself: the response may still legitimately arrive.
func (p *Processor) SendRequest(payload any, success SuccessFunc, failure FailureFunc, opts RequestOptions, ack AckFunc) error {
	var err error
	p.step(func() {
		if p.state == stateClosed {
			err = ErrClosed
			return
		}
		data, merr := wire.MarshalData(payload)
		if merr != nil {
			err = fmt.Errorf("processor: marshal request payload: %w", merr)
			return
		}

		if opts.RequestTimeout <= 0 {
			opts.RequestTimeout = DefaultRequestTimeout
		}
		if opts.SendAck && opts.AckTimeout > opts.RequestTimeout {
			p.log.Warn("ack timeout exceeds request timeout",
				"ack_timeout", opts.AckTimeout, "request_timeout", opts.RequestTimeout)
		}

		stamp := wire.NewStamp()
		raw := p.send(&wire.Envelope{
			Type:    wire.TypeRequest,
			Stamp:   stamp,
			Data:    data,
			SendAck: opts.SendAck,
		})

		r := &pendingRequest{
			stamp:   stamp,
			success: success,
			failure: failure,
			ack:     ack,
			opts:    opts,
			raw:     raw,
		}
		if opts.SendAck {
			r.state = ackPending
			if opts.AckTimeout > 0 {
				r.ackTimer = p.clk.AfterFunc(opts.AckTimeout, func() {
					p.step(func() { p.onRequestAckTimeout(stamp) })
				})
			}
		}
		r.reqTimer = p.clk.AfterFunc(opts.RequestTimeout, func() {
			p.step(func() { p.onRequestTimeout(stamp) })
		})
		p.store.putRequest(r)

		if p.hooks.RequestSent != nil {
			p.hooks.RequestSent(stamp)
		}
	})
	return err
}

// onRequestAckTimeout marks the ack leg timed out and resolves the ack
// callback with RequestAckTimedOut. The entry stays in the store.
func (p *Processor) onRequestAckTimeout(stamp string) {
	r := p.store.request(stamp)
	if r == nil || r.state != ackPending {
		return
	}
	r.state = ackTimedOut
	r.ackTimer = nil
	p.log.Debug("request ack timeout", "stamp", stamp)
	if r.ack != nil {
		ack := r.ack
		p.enqueue(func() { ack(RequestAckTimedOut) })
	}
}

// onRequestTimeout resolves a pending request with the timeout failure
// code selected by its ack state.
func (p *Processor) onRequestTimeout(stamp string) {
	r := p.store.removeRequest(stamp)
	if r == nil {
		return
	}
	if r.ackTimer != nil {
		// An armed, unelapsed ack timer at request expiry means the
		// caller configured AckTimeout > RequestTimeout.
		stopTimer(r.ackTimer)
		p.log.Warn("request expired with ack timer still armed", "stamp", stamp)
	}
	code := r.state.timeoutCode()
	p.log.Debug("request timeout", "stamp", stamp, "code", code, "ack_state", r.state)
	p.resolveRequest(r, code, nil)
}

// respondFunc builds the respond function handed to the application's
// request handler for the given inbound stamp.
func (p *Processor) respondFunc(stamp string) RespondFunc {
	return func(payload any, failureCode float64, opts ResponseOptions, ack AckFunc) error {
		var err error
		p.step(func() {
			if p.state == stateClosed {
				// Nothing can be sent anymore; tell the responder
				// synchronously.
				if ack != nil {
					p.enqueue(func() { ack(AckNotSent) })
				}
				err = ErrClosed
				return
			}
			data, merr := wire.MarshalData(payload)
			if merr != nil {
				err = fmt.Errorf("processor: marshal response payload: %w", merr)
				return
			}

			p.send(&wire.Envelope{
				Type:        wire.TypeResponse,
				Stamp:       stamp,
				Data:        data,
				SendAck:     opts.SendAck,
				FailureCode: failureCode,
			})
			if !opts.SendAck {
				return
			}

			timeout := opts.AckTimeout
			if timeout <= 0 {
				timeout = DefaultResponseAckTimeout
			}
			r := &pendingResponse{stamp: stamp, ack: ack, opts: opts}
			r.ackTimer = p.clk.AfterFunc(timeout, func() {
				p.step(func() { p.onResponseAckTimeout(stamp) })
			})
			p.store.putResponse(r)
		})
		return err
	}
}

// onResponseAckTimeout resolves a pending response with AckTimedOut.
func (p *Processor) onResponseAckTimeout(stamp string) {
	r := p.store.removeResponse(stamp)
	if r == nil {
		return
	}
	p.log.Debug("response ack timeout", "stamp", stamp)
	p.resolveResponseAck(r, AckTimedOut)
}
