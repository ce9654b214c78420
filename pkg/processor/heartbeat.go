package processor

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// heartbeat detects transport death faster than passive timeouts by
// sending periodic pings and scaling both its interval and its failure
// timeout with the measured round-trip time. The RTT window is the mean
// of the two most recent samples, so the cadence reacts quickly to
// degradation without chasing single outliers.
//
// All methods run with the owning processor's lock held.
type heartbeat struct {
	p   *Processor
	cfg HeartbeatConfig

	lastRTT    time.Duration
	currentRTT time.Duration

	nSent        uint64
	nLastArrived uint64

	inflight map[uint64]*pingRecord
	next     *clock.Timer
}

// pingRecord tracks one in-flight ping.
type pingRecord struct {
	sentAt time.Time
	fail   *clock.Timer
}

func newHeartbeat(p *Processor, cfg HeartbeatConfig) *heartbeat {
	return &heartbeat{
		p:          p,
		cfg:        cfg,
		lastRTT:    heartbeatSeedRTT,
		currentRTT: heartbeatSeedRTT,
		inflight:   make(map[uint64]*pingRecord),
	}
}

// start sends ping #1 immediately.
func (hb *heartbeat) start() {
	hb.sendPing()
}

// stop cancels the next-ping timer and every in-flight failure timer.
func (hb *heartbeat) stop() {
	stopTimer(hb.next)
	hb.next = nil
	for _, rec := range hb.inflight {
		stopTimer(rec.fail)
	}
	hb.inflight = make(map[uint64]*pingRecord)
}

// meanRTT is the arithmetic mean of the two most recent round trips.
func (hb *heartbeat) meanRTT() time.Duration {
	return (hb.lastRTT + hb.currentRTT) / 2
}

func (hb *heartbeat) interval() time.Duration {
	return scaled(hb.cfg.MinInterval, hb.cfg.IntervalMultiplier, hb.meanRTT())
}

func (hb *heartbeat) timeout() time.Duration {
	return scaled(hb.cfg.MinTimeout, hb.cfg.TimeoutMultiplier, hb.meanRTT())
}

func scaled(min time.Duration, mult float64, mean time.Duration) time.Duration {
	d := time.Duration(mult * float64(mean))
	if d < min {
		return min
	}
	return d
}

// sendPing transmits the next ping, arms its failure timer and
// schedules the ping after it.
func (hb *heartbeat) sendPing() {
	hb.nSent++
	n := hb.nSent

	hb.p.send(&wire.Envelope{Type: wire.TypePing, Data: wire.SequenceData(n)})

	rec := &pingRecord{sentAt: hb.p.clk.Now()}
	rec.fail = hb.p.clk.AfterFunc(hb.timeout(), func() {
		hb.p.step(func() { hb.onFailure(n) })
	})
	hb.inflight[n] = rec

	hb.next = hb.p.clk.AfterFunc(hb.interval(), func() {
		hb.p.step(func() {
			if hb.p.state == stateOpen {
				hb.sendPing()
			}
		})
	})
}

// onPong completes the round trip for ping seq.
func (hb *heartbeat) onPong(seq uint64) {
	rec, ok := hb.inflight[seq]
	if !ok {
		hb.p.log.Warn("pong without matching ping", "seq", seq)
		return
	}
	stopTimer(rec.fail)
	delete(hb.inflight, seq)

	rtt := hb.p.clk.Now().Sub(rec.sentAt)
	hb.lastRTT = hb.currentRTT
	hb.currentRTT = rtt
	if hb.p.hooks.HeartbeatRTT != nil {
		hb.p.hooks.HeartbeatRTT(rtt)
	}

	if seq > hb.nLastArrived+1 {
		hb.p.log.Warn("pong sequence gap", "seq", seq, "expected", hb.nLastArrived+1)
	}
	if seq > hb.nLastArrived {
		hb.nLastArrived = seq
	}

	hb.p.log.Debug("pong", "seq", seq, "rtt", rtt)
}

// onFailure fires when ping seq received no pong within the timeout.
// The connection is declared dead and the processor closes, requesting
// transport teardown.
func (hb *heartbeat) onFailure(seq uint64) {
	if hb.p.state != stateOpen {
		return
	}
	if _, ok := hb.inflight[seq]; !ok {
		return
	}
	hb.p.log.Error("heartbeat timeout, connection considered dead",
		"seq", seq, "timeout", hb.timeout())
	hb.p.closeLocked(true, true)
}
