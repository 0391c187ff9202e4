// Package logger defines the logging interface the engine writes to, plus a
// zerolog-backed default. Arguments after the message are alternating
// key/value pairs.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the minimal surface the engine and connection log through.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// New returns a ZerologLogger writing JSON to w with timestamps.
// If w is nil, it writes to stdout.
func New(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	return &ZerologLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

func (z *ZerologLogger) Debug(msg string, args ...any) { z.emit(z.logger.Debug(), msg, args) }
func (z *ZerologLogger) Info(msg string, args ...any)  { z.emit(z.logger.Info(), msg, args) }
func (z *ZerologLogger) Warn(msg string, args ...any)  { z.emit(z.logger.Warn(), msg, args) }
func (z *ZerologLogger) Error(msg string, args ...any) { z.emit(z.logger.Error(), msg, args) }

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
