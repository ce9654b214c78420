package processor

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Operation timeout defaults.
const (
	// DefaultNoteAckTimeout bounds the wait for a noteAck.
	DefaultNoteAckTimeout = 5 * time.Second

	// DefaultRequestTimeout bounds the wait for a response.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultResponseAckTimeout bounds the responder's wait for a responseAck.
	DefaultResponseAckTimeout = 5 * time.Second
)

// Heartbeat defaults. Interval and timeout both scale with the mean of
// the two most recent round trips, floored by the Min values, so a fast
// link probes often with a tight timeout while a congested one backs
// off instead of producing false positives.
const (
	DefaultHeartbeatMinInterval        = 2 * time.Second
	DefaultHeartbeatIntervalMultiplier = 10.0
	DefaultHeartbeatMinTimeout         = 1500 * time.Millisecond
	DefaultHeartbeatTimeoutMultiplier  = 10.0

	// heartbeatSeedRTT seeds the RTT statistics before the first pong.
	heartbeatSeedRTT = 50 * time.Millisecond
)

// HeartbeatConfig tunes the adaptive heartbeat engine.
type HeartbeatConfig struct {
	// MinInterval is the floor for the delay between pings.
	MinInterval time.Duration

	// IntervalMultiplier scales the mean RTT into the ping interval.
	IntervalMultiplier float64

	// MinTimeout is the floor for the per-ping failure timeout.
	MinTimeout time.Duration

	// TimeoutMultiplier scales the mean RTT into the failure timeout.
	TimeoutMultiplier float64
}

// DefaultHeartbeatConfig returns the default heartbeat tuning.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		MinInterval:        DefaultHeartbeatMinInterval,
		IntervalMultiplier: DefaultHeartbeatIntervalMultiplier,
		MinTimeout:         DefaultHeartbeatMinTimeout,
		TimeoutMultiplier:  DefaultHeartbeatTimeoutMultiplier,
	}
}

// Config configures a Processor. The zero value is usable: zero fields
// fall back to the defaults below.
type Config struct {
	// Heartbeat tunes the adaptive heartbeat engine.
	Heartbeat HeartbeatConfig

	// OpenOnConstruct opens the processor (starting heartbeats)
	// immediately in New instead of waiting for an explicit Open call.
	OpenOnConstruct bool

	// StrictDecode additionally validates every inbound message against
	// the embedded envelope schema before dispatch.
	StrictDecode bool

	// OnNote handles inbound notes. Nil drops notes after acking.
	OnNote NoteHandler

	// OnRequest handles inbound requests. Nil requests are reported to
	// the peer as errors.
	OnRequest RequestHandler

	// Logger receives engine diagnostics. Default: slog.Default().
	Logger Logger

	// Clock drives all timers. Default: the system clock. Tests inject
	// a mock to drive timeouts deterministically.
	Clock clock.Clock

	// Hooks receive observability events.
	Hooks Hooks
}

// DefaultConfig returns a Config with the default heartbeat tuning.
func DefaultConfig() Config {
	return Config{Heartbeat: DefaultHeartbeatConfig()}
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Heartbeat.MinInterval <= 0 {
		c.Heartbeat.MinInterval = DefaultHeartbeatMinInterval
	}
	if c.Heartbeat.IntervalMultiplier <= 0 {
		c.Heartbeat.IntervalMultiplier = DefaultHeartbeatIntervalMultiplier
	}
	if c.Heartbeat.MinTimeout <= 0 {
		c.Heartbeat.MinTimeout = DefaultHeartbeatMinTimeout
	}
	if c.Heartbeat.TimeoutMultiplier <= 0 {
		c.Heartbeat.TimeoutMultiplier = DefaultHeartbeatTimeoutMultiplier
	}
	if c.Logger == nil {
		c.Logger = NewSlogLogger(slog.Default())
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}
