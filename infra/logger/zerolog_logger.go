package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger backs the service logging contract with rs/zerolog. Every
// record carries a component field ("detector", "mission", "telemetry",
// "sim", ...) so one stream can be split per service.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a logger writing JSON records to stdout.
// APP_ENV=dev switches to the human-readable console format, and
// FT_LOG_LEVEL caps the level (default debug).
func NewZerologLogger(component string) Logger {
	return newZerologLogger(os.Stdout, component)
}

func newZerologLogger(w io.Writer, component string) Logger {
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl := zerolog.DebugLevel
	if s := os.Getenv("FT_LOG_LEVEL"); s != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			lvl = parsed
		}
	}
	zl := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}
