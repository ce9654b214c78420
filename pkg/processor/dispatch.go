package processor

import (
	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// dispatch routes a decoded inbound envelope to its handler. Runs with
// the engine lock held.
func (p *Processor) dispatch(env *wire.Envelope, size int) {
	if p.hooks.MessageReceived != nil {
		p.hooks.MessageReceived(env.Type, size)
	}

	switch env.Type {
	case wire.TypeNote:
		p.handleNote(env)
	case wire.TypeNoteAck:
		p.handleNoteAck(env)
	case wire.TypeRequest:
		p.handleRequest(env)
	case wire.TypeRequestAck:
		p.handleRequestAck(env)
	case wire.TypeResponse:
		p.handleResponse(env)
	case wire.TypeResponseAck:
		p.handleResponseAck(env)
	case wire.TypePing:
		p.handlePing(env)
	case wire.TypePong:
		p.handlePong(env)
	case wire.TypeError:
		p.log.Error("peer reported error", "data", string(env.Data))
	default:
		p.log.Warn("unrecognized message type dropped", "type", string(env.Type))
	}
}

// handleNote acks if requested and hands the payload to the application.
func (p *Processor) handleNote(env *wire.Envelope) {
	if env.SendAck {
		p.send(&wire.Envelope{Type: wire.TypeNoteAck, Stamp: env.Stamp})
	}
	if p.cfg.OnNote == nil {
		p.log.Debug("note dropped, no handler", "stamp", env.Stamp)
		return
	}
	handler := p.cfg.OnNote
	data := env.Data
	p.enqueue(func() { handler(data) })
}

// handleNoteAck resolves the matching pending note with AckArrived.
func (p *Processor) handleNoteAck(env *wire.Envelope) {
	n := p.store.removeNote(env.Stamp)
	if n == nil {
		p.reportUnmatched("noteAck", env.Stamp)
		return
	}
	stopTimer(n.ackTimer)
	p.resolveNoteAck(n, AckArrived)
}

// handleRequest acks if requested, then invokes the application request
// handler with a respond function bound to the inbound stamp.
func (p *Processor) handleRequest(env *wire.Envelope) {
	if env.SendAck {
		p.send(&wire.Envelope{Type: wire.TypeRequestAck, Stamp: env.Stamp})
	}
	if p.cfg.OnRequest == nil {
		p.reportToPeer("no_request_handler", "request dropped, no handler", "stamp", env.Stamp)
		return
	}
	handler := p.cfg.OnRequest
	data := env.Data
	respond := p.respondFunc(env.Stamp)
	p.enqueue(func() { handler(data, respond) })
}

// handleRequestAck marks the matching pending request acked, unless its
// ack leg already timed out, in which case the late ack is reported and
// ignored.
func (p *Processor) handleRequestAck(env *wire.Envelope) {
	r := p.store.request(env.Stamp)
	if r == nil {
		p.reportUnmatched("requestAck", env.Stamp)
		return
	}
	switch r.state {
	case ackPending:
		r.state = ackArrived
		stopTimer(r.ackTimer)
		r.ackTimer = nil
		if r.ack != nil {
			ack := r.ack
			p.enqueue(func() { ack(AckArrived) })
		}
	case ackTimedOut:
		p.reportToPeer("late_requestAck", "requestAck after ack timeout ignored", "stamp", env.Stamp)
	case ackArrived:
		p.reportToPeer("duplicate_requestAck", "duplicate requestAck ignored", "stamp", env.Stamp)
	default:
		p.reportToPeer("unexpected_requestAck", "requestAck for request that asked for none", "stamp", env.Stamp)
	}
}

// handleResponse resolves the matching pending request with success or
// failure per the envelope's failure code, acking the response first if
// the responder asked for it.
func (p *Processor) handleResponse(env *wire.Envelope) {
	r := p.store.removeRequest(env.Stamp)
	if r == nil {
		p.reportUnmatched("response", env.Stamp)
		return
	}
	stopTimer(r.reqTimer)
	stopTimer(r.ackTimer)
	if env.SendAck {
		p.send(&wire.Envelope{Type: wire.TypeResponseAck, Stamp: env.Stamp})
	}
	p.resolveRequest(r, Code(env.FailureCode), env.Data)
}

// handleResponseAck resolves the matching pending response.
func (p *Processor) handleResponseAck(env *wire.Envelope) {
	r := p.store.removeResponse(env.Stamp)
	if r == nil {
		p.reportUnmatched("responseAck", env.Stamp)
		return
	}
	stopTimer(r.ackTimer)
	p.resolveResponseAck(r, AckArrived)
}

// handlePing replies with a pong echoing the sequence number.
func (p *Processor) handlePing(env *wire.Envelope) {
	p.send(&wire.Envelope{Type: wire.TypePong, Data: env.Data})
}

// handlePong delegates to the heartbeat engine.
func (p *Processor) handlePong(env *wire.Envelope) {
	seq, err := wire.Sequence(env)
	if err != nil {
		p.reportToPeer("malformed", "pong with bad sequence", "err", err)
		return
	}
	p.hb.onPong(seq)
}

// reportUnmatched handles an ack or response whose stamp has no pending
// entry. A stamp resolved not long ago points at a duplicate or late
// arrival; anything else is protocol misuse. Both are non-fatal.
func (p *Processor) reportUnmatched(kind, stamp string) {
	if p.store.recentlyResolved(stamp) {
		p.reportToPeer("late_"+kind, "late or duplicate "+kind+" dropped", "stamp", stamp)
		return
	}
	p.reportToPeer("unknown_"+kind, kind+" with unknown stamp dropped", "stamp", stamp)
}
