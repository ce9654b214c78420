package transport

import (
	"errors"
	"sync"
)

// ErrPipeClosed is returned by Pipe.Send after either side closed.
var ErrPipeClosed = errors.New("transport: pipe closed")

const pipeBuffer = 256

// Pipe is one side of an in-memory duplex connection. Delivery to the
// bound receiver is asynchronous: Send queues the message and a pump
// goroutine hands it over, so an engine may send while processing an
// inbound message without deadlocking on its peer's reply.
type Pipe struct {
	inbox chan []byte
	peer  *Pipe

	done     chan struct{}
	closeOne *sync.Once
}

// NewPair returns two connected pipe ends. Closing either end tears
// down both.
func NewPair() (*Pipe, *Pipe) {
	done := make(chan struct{})
	once := &sync.Once{}
	a := &Pipe{inbox: make(chan []byte, pipeBuffer), done: done, closeOne: once}
	b := &Pipe{inbox: make(chan []byte, pipeBuffer), done: done, closeOne: once}
	a.peer, b.peer = b, a
	return a, b
}

// Bind starts the delivery pump feeding r. Call it on both ends before
// traffic flows. The pump notifies r of closure and exits when either
// end closes.
func (p *Pipe) Bind(r Receiver) {
	go func() {
		for {
			select {
			case raw := <-p.inbox:
				r.HandleRaw(raw)
			case <-p.done:
				// Drain what was queued before the close won the race.
				for {
					select {
					case raw := <-p.inbox:
						r.HandleRaw(raw)
					default:
						r.HandleTransportClosed()
						return
					}
				}
			}
		}
	}()
}

// Send queues data for the peer. The payload is copied, so the caller
// may reuse the buffer.
func (p *Pipe) Send(data []byte) error {
	msg := make([]byte, len(data))
	copy(msg, data)
	select {
	case <-p.done:
		return ErrPipeClosed
	case p.peer.inbox <- msg:
		return nil
	}
}

// Close tears down both ends. Idempotent.
func (p *Pipe) Close() error {
	p.closeOne.Do(func() { close(p.done) })
	return nil
}
