package transport

import (
	"github.com/olahol/melody"

	"github.com/reliwire-dev/reliwire/pkg/processor"
)

// Session adapts a melody server session to the engine's outbound
// contract. Inbound wiring stays with the melody instance: route
// HandleMessage to the engine's HandleRaw and HandleDisconnect to
// HandleTransportClosed.
type Session struct {
	s *melody.Session
}

// NewSession wraps a melody session.
func NewSession(s *melody.Session) *Session {
	return &Session{s: s}
}

// Send writes one text message through melody's write pump.
func (m *Session) Send(data []byte) error {
	return m.s.Write(data)
}

// Close requests a clean shutdown of the session.
func (m *Session) Close() error {
	if m.s.IsClosed() {
		return nil
	}
	return m.s.CloseWithMsg(melody.FormatCloseMessage(melody.CloseNormalClosure, ""))
}

var _ processor.Transport = (*Session)(nil)
