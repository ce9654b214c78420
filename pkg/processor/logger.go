package processor

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"
)

// Logger is the logging sink consumed by the engine. Arguments are
// alternating key/value pairs, slog style.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// NewSlogLogger adapts a *slog.Logger to the Logger contract.
func NewSlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }

// NewZerologLogger adapts a zerolog.Logger to the Logger contract.
func NewZerologLogger(l zerolog.Logger) Logger {
	return zerologLogger{l: l}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z zerologLogger) Error(msg string, args ...any) { zemit(z.l.Error(), msg, args) }
func (z zerologLogger) Warn(msg string, args ...any)  { zemit(z.l.Warn(), msg, args) }
func (z zerologLogger) Info(msg string, args ...any)  { zemit(z.l.Info(), msg, args) }
func (z zerologLogger) Debug(msg string, args ...any) { zemit(z.l.Debug(), msg, args) }

func zemit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
