package processor

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// ErrClosed is returned by send operations after the processor closed.
var ErrClosed = errors.New("processor: connection closed")

// Transport is the outbound contract consumed by the engine. Send hands
// a fully serialized message to the underlying connection and is
// assumed to either succeed or fail silently; the engine never trusts
// it for delivery confirmation. Close requests teardown of the
// underlying connection and is idempotent from the engine's view.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Processor states. A processor never reopens once closed.
const (
	stateIdle = iota // constructed, heartbeats not started
	stateOpen
	stateClosed
)

// Processor is the protocol engine façade owning the correlation
// stores, timers, heartbeat engine and dispatcher for one connection.
type Processor struct {
	mu    sync.Mutex
	cfg   Config
	tr    Transport
	log   Logger
	clk   clock.Clock
	hooks Hooks

	state int
	store *store
	hb    *heartbeat

	// calls queued under the lock, invoked after release; see step.
	calls []func()
}

// New creates a Processor bound to the given transport. With
// Config.OpenOnConstruct the heartbeat engine starts immediately;
// otherwise call Open once the transport owner is ready to deliver
// inbound traffic.
func New(tr Transport, cfg Config) *Processor {
	cfg = cfg.withDefaults()
	p := &Processor{
		cfg:   cfg,
		tr:    tr,
		log:   cfg.Logger,
		clk:   cfg.Clock,
		hooks: cfg.Hooks,
		store: newStore(),
	}
	p.hb = newHeartbeat(p, cfg.Heartbeat)
	if cfg.OpenOnConstruct {
		p.Open()
	}
	return p
}

// step executes fn as one serialized engine step, then invokes the
// application callbacks queued during it. Callbacks run outside the
// lock, so they may re-enter the Processor.
func (p *Processor) step(fn func()) {
	p.mu.Lock()
	fn()
	calls := p.calls
	p.calls = nil
	p.mu.Unlock()

	for _, c := range calls {
		c()
	}
}

// enqueue defers a callback until the current step releases the lock.
func (p *Processor) enqueue(fn func()) {
	p.calls = append(p.calls, fn)
}

// Open starts the heartbeat engine. Opening twice, or after close, is a
// no-op.
func (p *Processor) Open() {
	p.step(func() {
		if p.state != stateIdle {
			return
		}
		p.state = stateOpen
		p.hb.start()
	})
}

// Closed reports whether the processor reached its terminal state.
func (p *Processor) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateClosed
}

// Close tears the processor down, requesting transport closure and
// resolving every pending operation with its close-path code. Closing
// an already closed processor is a no-op.
func (p *Processor) Close() {
	p.step(func() { p.closeLocked(true, false) })
}

// HandleTransportClosed is the entry point for the transport owner's
// closure notification. Pending operations resolve through the same
// close-path table as Close, but the transport close primitive is not
// invoked again.
func (p *Processor) HandleTransportClosed() {
	p.step(func() { p.closeLocked(false, false) })
}

// HandleRaw is the inbound entry point: the transport owner calls it
// for every received message, in delivery order.
func (p *Processor) HandleRaw(raw []byte) {
	p.step(func() {
		if p.state == stateClosed {
			p.log.Debug("message after close dropped", "size", len(raw))
			return
		}
		if p.cfg.StrictDecode {
			if err := wire.Validate(raw); err != nil {
				p.reportToPeer("malformed", "message failed schema validation", "err", err)
				return
			}
		}
		env, err := wire.Decode(raw)
		if err != nil {
			p.reportToPeer("malformed", "undecodable message", "err", err)
			return
		}
		p.dispatch(env, len(raw))
	})
}

// send encodes and transmits an envelope. Transport errors are logged
// only: the transport is allowed to fail silently, and pending-state
// timeouts resolve the operation either way. Returns the serialized
// form for diagnostics.
func (p *Processor) send(env *wire.Envelope) []byte {
	raw, err := wire.Encode(env)
	if err != nil {
		p.log.Error("envelope encode failed", "type", env.Type, "err", err)
		return nil
	}
	if err := p.tr.Send(raw); err != nil {
		p.log.Warn("transport send failed", "type", env.Type, "err", err)
	}
	if p.hooks.MessageSent != nil {
		p.hooks.MessageSent(env.Type, len(raw))
	}
	return raw
}

// reportToPeer handles a non-fatal protocol error: an error envelope
// goes to the remote peer, the condition is logged, and the triggering
// message is dropped with no state mutated.
func (p *Processor) reportToPeer(kind, msg string, args ...any) {
	p.log.Warn(msg, args...)
	if p.hooks.ProtocolError != nil {
		p.hooks.ProtocolError(kind)
	}
	data, _ := wire.MarshalData(msg)
	p.send(&wire.Envelope{Type: wire.TypeError, Data: data})
}

// closeLocked performs first-close teardown: stop the heartbeat,
// optionally close the transport, resolve every pending entry exactly
// once with its close-induced outcome, and empty the stores.
func (p *Processor) closeLocked(closeTransport, byHeartbeat bool) {
	if p.state == stateClosed {
		return
	}
	p.state = stateClosed

	p.hb.stop()

	if closeTransport {
		if err := p.tr.Close(); err != nil {
			p.log.Debug("transport close", "err", err)
		}
	}

	for _, stamp := range mapKeys(p.store.notes) {
		n := p.store.removeNote(stamp)
		stopTimer(n.ackTimer)
		p.resolveNoteAck(n, AckConnectionClosed)
	}
	for _, stamp := range mapKeys(p.store.requests) {
		r := p.store.removeRequest(stamp)
		stopTimer(r.reqTimer)
		stopTimer(r.ackTimer)
		p.resolveRequest(r, r.state.closeCode(), nil)
	}
	for _, stamp := range mapKeys(p.store.responses) {
		r := p.store.removeResponse(stamp)
		stopTimer(r.ackTimer)
		// Documented ambiguity: the response may in fact have been
		// delivered; the engine cannot know the transport's true state
		// at closure and reports code 1 regardless.
		p.resolveResponseAck(r, AckConnectionClosed)
	}

	if p.hooks.Closed != nil {
		p.hooks.Closed(byHeartbeat)
	}
	p.log.Info("processor closed", "by_heartbeat", byHeartbeat)
}

// resolveNoteAck resolves a pending note's ack callback.
func (p *Processor) resolveNoteAck(n *pendingNote, code Code) {
	if p.hooks.NoteAckResolved != nil {
		p.hooks.NoteAckResolved(code)
	}
	if n.ack != nil {
		ack := n.ack
		p.enqueue(func() { ack(code) })
	}
}

// resolveRequest resolves a pending request with success (code 0) or
// failure.
func (p *Processor) resolveRequest(r *pendingRequest, code Code, payload json.RawMessage) {
	if p.hooks.RequestResolved != nil {
		p.hooks.RequestResolved(r.stamp, code)
	}
	if code == 0 {
		if r.success != nil {
			success := r.success
			p.enqueue(func() { success(payload) })
		}
		return
	}
	if r.failure != nil {
		failure := r.failure
		p.enqueue(func() { failure(code, payload) })
	}
}

// resolveResponseAck resolves a pending response's ack callback.
func (p *Processor) resolveResponseAck(r *pendingResponse, code Code) {
	if p.hooks.ResponseAckResolved != nil {
		p.hooks.ResponseAckResolved(code)
	}
	if r.ack != nil {
		ack := r.ack
		p.enqueue(func() { ack(code) })
	}
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
