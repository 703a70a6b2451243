// Package logging provides the leveled logger used across driversync. It is a
// thin wrapper around zerolog that keeps the printf-style call sites short.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LevelIds maps levels to their command-line names, for use with enumflag.
var LevelIds = map[Level][]string{
	LevelDebug: {"debug"},
	LevelInfo:  {"info"},
	LevelWarn:  {"warn", "warning"},
	LevelError: {"error"},
}

func (l Level) String() string {
	if ids, ok := LevelIds[l]; ok {
		return ids[0]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type Config struct {
	Level   Level
	Output  io.Writer // defaults to os.Stderr
	NoColor bool
}

type Logger struct {
	logger zerolog.Logger
}

func NewLogger(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	console := zerolog.ConsoleWriter{
		Out:          out,
		NoColor:      config.NoColor,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}

	return &Logger{
		logger: zerolog.New(console).Level(config.Level.zerolog()),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// With returns a child logger that adds the key/value pair to every event.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}

// Printf logs at debug level. It lets the logger stand in where a
// *log.Logger-like value is expected.
func (l *Logger) Printf(format string, args ...any) {
	l.Debugf(format, args...)
}
