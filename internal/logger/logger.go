package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Log is the process-wide root logger. It writes to stderr: stdout belongs
// to the host protocol (the ready token and the headless line stream).
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init configures the root logger. Valid levels: debug, info, warn, error.
// Unknown levels fall back to info.
func Init(level string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if w == nil {
		w = os.Stderr
	}
	Log = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Module returns a logger scoped with a module field.
func Module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

// WALogger adapts zerolog to whatsmeow's Logger interface.
type WALogger struct {
	zlog zerolog.Logger
}

// NewWALogger creates a whatsmeow-compatible logger for the given module.
func NewWALogger(module string) waLog.Logger {
	return &WALogger{zlog: Module(module)}
}

func (l *WALogger) Debugf(msg string, args ...interface{}) {
	l.zlog.Debug().Msgf(msg, args...)
}

func (l *WALogger) Infof(msg string, args ...interface{}) {
	l.zlog.Info().Msgf(msg, args...)
}

func (l *WALogger) Warnf(msg string, args ...interface{}) {
	l.zlog.Warn().Msgf(msg, args...)
}

func (l *WALogger) Errorf(msg string, args ...interface{}) {
	l.zlog.Error().Msgf(msg, args...)
}

func (l *WALogger) Sub(module string) waLog.Logger {
	return &WALogger{zlog: l.zlog.With().Str("sub", module).Logger()}
}
