package processor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reliwire-dev/reliwire/pkg/wire"
)

// requestRecorder collects every outcome of one sent request.
type requestRecorder struct {
	successes []string
	failures  []Code
	acks      []Code
}

func (r *requestRecorder) success() SuccessFunc {
	return func(payload json.RawMessage) { r.successes = append(r.successes, string(payload)) }
}

func (r *requestRecorder) failure() FailureFunc {
	return func(code Code, _ json.RawMessage) { r.failures = append(r.failures, code) }
}

func (r *requestRecorder) ack() AckFunc {
	return func(code Code) { r.acks = append(r.acks, code) }
}

func sendTestRequest(t *testing.T, p *Processor, tr *captureTransport, rec *requestRecorder, opts RequestOptions) *wire.Envelope {
	t.Helper()
	if err := p.SendRequest(map[string]int{"v": 4}, rec.success(), rec.failure(), opts, rec.ack()); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	return tr.last(t, "request")
}

func TestSendRequestSuccess(t *testing.T) {
	p, tr, clk, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	env := sendTestRequest(t, p, tr, &rec, RequestOptions{})

	p.HandleRaw(responseRaw(t, env.Stamp, 0, `{"ok":true}`, false))

	if len(rec.successes) != 1 || rec.successes[0] != `{"ok":true}` {
		t.Fatalf("successes = %v, want one {\"ok\":true}", rec.successes)
	}

	// The request timer must be gone: advancing past the deadline may
	// not produce a failure.
	clk.Add(time.Hour)
	if len(rec.failures) != 0 {
		t.Errorf("failures = %v, want none", rec.failures)
	}

	p.mu.Lock()
	empty := p.store.empty()
	p.mu.Unlock()
	if !empty {
		t.Error("entry still pending after response")
	}
}

func TestSendRequestPeerFailureCode(t *testing.T) {
	p, tr, _, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	env := sendTestRequest(t, p, tr, &rec, RequestOptions{})

	p.HandleRaw(responseRaw(t, env.Stamp, 7, `"nope"`, false))

	if len(rec.failures) != 1 || rec.failures[0] != 7 {
		t.Fatalf("failures = %v, want [7]", rec.failures)
	}
	if len(rec.successes) != 0 {
		t.Errorf("successes = %v, want none", rec.successes)
	}
}

func TestSendRequestAcksResponseWhenAsked(t *testing.T) {
	p, tr, _, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	env := sendTestRequest(t, p, tr, &rec, RequestOptions{})

	p.HandleRaw(responseRaw(t, env.Stamp, 0, `1`, true))

	ack := tr.last(t, "responseAck")
	if ack.Stamp != env.Stamp {
		t.Errorf("responseAck stamp = %q, want %q", ack.Stamp, env.Stamp)
	}
}

func TestRequestTimeoutNoAck(t *testing.T) {
	p, tr, clk, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	sendTestRequest(t, p, tr, &rec, RequestOptions{RequestTimeout: 10 * time.Second})

	clk.Add(10 * time.Second)

	if len(rec.failures) != 1 || rec.failures[0] != FailureTimeout {
		t.Fatalf("failures = %v, want [2]", rec.failures)
	}

	// Only once, even across later close.
	p.Close()
	if len(rec.failures) != 1 {
		t.Fatalf("failures after close = %v, want exactly one", rec.failures)
	}
}

func TestRequestTimeoutAfterAckArrived(t *testing.T) {
	p, tr, clk, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	env := sendTestRequest(t, p, tr, &rec, RequestOptions{SendAck: true, AckTimeout: time.Second})

	p.HandleRaw(requestAckRaw(t, env.Stamp))
	if len(rec.acks) != 1 || rec.acks[0] != AckArrived {
		t.Fatalf("acks = %v, want [0]", rec.acks)
	}

	clk.Add(10 * time.Second)
	if len(rec.failures) != 1 || rec.failures[0] != FailureTimeoutAckArrived {
		t.Fatalf("failures = %v, want [2.1]", rec.failures)
	}
}

func TestRequestTimeoutAckStillPending(t *testing.T) {
	// SendAck without an ack timer: the ack leg stays pending until the
	// request dies, selecting 2.2.
	p, tr, clk, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	sendTestRequest(t, p, tr, &rec, RequestOptions{SendAck: true})

	clk.Add(10 * time.Second)

	if len(rec.failures) != 1 || rec.failures[0] != FailureTimeoutAckPending {
		t.Fatalf("failures = %v, want [2.2]", rec.failures)
	}
	if len(rec.acks) != 0 {
		t.Errorf("acks = %v, want none", rec.acks)
	}
}

func TestRequestAckTimeoutThenLateAck(t *testing.T) {
	// Ack timeout at 1s, a requestAck arriving at 2s is rejected, and
	// the request still runs into its own timeout with code 2.3.
	p, tr, clk, _ := newTestProcessor(t, nil)

	var kinds []string
	var rec requestRecorder
	p.mu.Lock()
	p.hooks.ProtocolError = func(kind string) { kinds = append(kinds, kind) }
	p.mu.Unlock()

	env := sendTestRequest(t, p, tr, &rec, RequestOptions{SendAck: true, AckTimeout: time.Second})

	clk.Add(time.Second)
	if len(rec.acks) != 1 || rec.acks[0] != RequestAckTimedOut {
		t.Fatalf("acks = %v, want [1]", rec.acks)
	}

	clk.Add(time.Second)
	p.HandleRaw(requestAckRaw(t, env.Stamp))

	if len(rec.acks) != 1 {
		t.Fatalf("acks after late requestAck = %v, want exactly one", rec.acks)
	}
	if len(kinds) != 1 || kinds[0] != "late_requestAck" {
		t.Fatalf("protocol errors = %v, want [late_requestAck]", kinds)
	}

	// Entry must still be pending toward its own timeout.
	clk.Add(8 * time.Second)
	if len(rec.failures) != 1 || rec.failures[0] != FailureTimeoutAckTimedOut {
		t.Fatalf("failures = %v, want [2.3]", rec.failures)
	}
}

func TestRequestAckTimeoutDoesNotResolveRequest(t *testing.T) {
	p, tr, clk, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	env := sendTestRequest(t, p, tr, &rec, RequestOptions{SendAck: true, AckTimeout: time.Second})

	clk.Add(time.Second)
	if len(rec.failures) != 0 {
		t.Fatalf("failures after ack timeout = %v, want none", rec.failures)
	}

	// The response may still legitimately arrive.
	p.HandleRaw(responseRaw(t, env.Stamp, 0, `"late but fine"`, false))
	if len(rec.successes) != 1 {
		t.Fatalf("successes = %v, want one", rec.successes)
	}
}

func TestRequestCloseCodes(t *testing.T) {
	tests := []struct {
		name    string
		opts    RequestOptions
		prepare func(t *testing.T, p *Processor, env *wire.Envelope, clk interface{ Add(time.Duration) })
		want    Code
	}{
		{
			name: "no_ack_requested",
			opts: RequestOptions{},
			want: FailureClosed,
		},
		{
			name: "ack_arrived",
			opts: RequestOptions{SendAck: true, AckTimeout: 5 * time.Second},
			prepare: func(t *testing.T, p *Processor, env *wire.Envelope, _ interface{ Add(time.Duration) }) {
				p.HandleRaw(requestAckRaw(t, env.Stamp))
			},
			want: FailureClosedAckArrived,
		},
		{
			name: "ack_pending",
			opts: RequestOptions{SendAck: true, AckTimeout: 5 * time.Second},
			prepare: func(_ *testing.T, _ *Processor, _ *wire.Envelope, clk interface{ Add(time.Duration) }) {
				clk.Add(3 * time.Second) // close at t=3s, before the 5s ack timeout
			},
			want: FailureClosedAckPending,
		},
		{
			name: "ack_timed_out",
			opts: RequestOptions{SendAck: true, AckTimeout: time.Second},
			prepare: func(_ *testing.T, _ *Processor, _ *wire.Envelope, clk interface{ Add(time.Duration) }) {
				clk.Add(2 * time.Second)
			},
			want: FailureClosedAckTimedOut,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, tr, clk, _ := newTestProcessor(t, nil)

			var rec requestRecorder
			env := sendTestRequest(t, p, tr, &rec, tc.opts)
			if tc.prepare != nil {
				tc.prepare(t, p, env, clk)
			}

			p.Close()

			if len(rec.failures) != 1 || rec.failures[0] != tc.want {
				t.Fatalf("failures = %v, want [%s]", rec.failures, tc.want)
			}
			if len(rec.successes) != 0 {
				t.Errorf("successes = %v, want none", rec.successes)
			}
		})
	}
}

func TestRequestCloseFiresNoAckCallback(t *testing.T) {
	// Connection loss resolves requests through the failure callback
	// only; the ack callback stays silent.
	p, tr, _, _ := newTestProcessor(t, nil)

	var rec requestRecorder
	sendTestRequest(t, p, tr, &rec, RequestOptions{SendAck: true, AckTimeout: 5 * time.Second})

	p.Close()

	if len(rec.acks) != 0 {
		t.Errorf("acks = %v, want none", rec.acks)
	}
	if len(rec.failures) != 1 || rec.failures[0] != FailureClosedAckPending {
		t.Fatalf("failures = %v, want [1.2]", rec.failures)
	}
}

func TestRequestAckTimeoutBeyondRequestTimeoutLogged(t *testing.T) {
	p, tr, clk, lg := newTestProcessor(t, nil)

	var rec requestRecorder
	sendTestRequest(t, p, tr, &rec, RequestOptions{
		RequestTimeout: time.Second,
		SendAck:        true,
		AckTimeout:     5 * time.Second,
	})

	if lg.count("warn", "ack timeout exceeds request timeout") != 1 {
		t.Error("misconfigured ack timeout not logged at send")
	}

	clk.Add(time.Second)
	if len(rec.failures) != 1 || rec.failures[0] != FailureTimeoutAckPending {
		t.Fatalf("failures = %v, want [2.2]", rec.failures)
	}
	if lg.count("warn", "request expired with ack timer still armed") != 1 {
		t.Error("armed ack timer at expiry not logged")
	}
}

func TestSendRequestAfterClose(t *testing.T) {
	p, _, _, _ := newTestProcessor(t, nil)
	p.Close()

	var rec requestRecorder
	err := p.SendRequest("x", rec.success(), rec.failure(), RequestOptions{}, nil)
	if err != ErrClosed {
		t.Fatalf("SendRequest() error = %v, want ErrClosed", err)
	}
}
