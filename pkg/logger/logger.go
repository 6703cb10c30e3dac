package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DEBUG int = iota
	INFO
	WARNING
	ERROR
	SILENCE
)

type Logger interface {
	Debugf(msg string, a ...any)
	Infof(msg string, a ...any)
	Warnf(msg string, a ...any)
	Errorf(msg string, a ...any)
}

type zeroLogger struct {
	inner zerolog.Logger
}

// NewLogger returns a logger printing human readable lines to stdout. It is
// the logger of local runs and tests.
func NewLogger(level int) *zeroLogger {
	return newZeroLogger(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}, level)
}

// NewJSONLogger returns a logger printing one JSON object per line.
func NewJSONLogger(w io.Writer, level int) *zeroLogger {
	return newZeroLogger(w, level)
}

// New picks the output format by environment.
func New(env string, level int) *zeroLogger {
	if env == "local" || env == "test" {
		return NewLogger(level)
	}

	return NewJSONLogger(os.Stdout, level)
}

func newZeroLogger(w io.Writer, level int) *zeroLogger {
	return &zeroLogger{
		inner: zerolog.New(w).Level(toZeroLevel(level)).With().Timestamp().Logger(),
	}
}

// With returns a child logger which attaches the key/value to every line.
func (l *zeroLogger) With(key, value string) *zeroLogger {
	return &zeroLogger{inner: l.inner.With().Str(key, value).Logger()}
}

func (l *zeroLogger) Debugf(msg string, a ...any) {
	l.inner.Debug().Msgf(msg, a...)
}

func (l *zeroLogger) Infof(msg string, a ...any) {
	l.inner.Info().Msgf(msg, a...)
}

func (l *zeroLogger) Warnf(msg string, a ...any) {
	l.inner.Warn().Msgf(msg, a...)
}

func (l *zeroLogger) Errorf(msg string, a ...any) {
	l.inner.Error().Msgf(msg, a...)
}

func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "silence", "silent", "off":
		return SILENCE
	default:
		return INFO
	}
}

func toZeroLevel(level int) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARNING:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}
