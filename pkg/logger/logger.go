// Package logger is the process-wide logging facade: every other package
// calls the level functions below rather than touching a logger instance
// directly. Underneath, it's a zerolog.Logger writing leveled, timestamped,
// console-formatted events — the level/format knobs here just translate
// onto zerolog's own configuration rather than reimplementing it.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Log levels, kept numerically compatible with the original int-based API
// (LevelDebug < LevelInfo < LevelWarn < LevelError < LevelSuccess) so
// existing SetLevel(logger.LevelWarn) call sites don't need to change.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

var base zerolog.Logger

func init() {
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

func toZerologLevel(level int) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError, LevelSuccess:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel sets the minimum log level that will actually be emitted.
func SetLevel(level int) {
	base = base.Level(toZerologLevel(level))
}

// SetTimeFormat changes the timestamp layout used in console output.
func SetTimeFormat(format string) {
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: format}).
		With().Timestamp().Logger()
}

// ShowTime(true) adds a timestamp field to the current logger. ShowTime(false)
// leaves the logger unchanged: a timestamp already configured (the default,
// and after SetTimeFormat or SetJSON) stays in the output.
func ShowTime(show bool) {
	if show {
		base = base.With().Timestamp().Logger()
		return
	}
	base = base.With().Logger()
}

// SetJSON switches to raw JSON output on stderr (no console formatting), for
// when the log stream is captured by a log aggregator rather than a terminal.
func SetJSON() {
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Debug logs a debug-level message.
func Debug(format string, args ...interface{}) {
	base.Debug().Msgf(format, args...)
}

// Info logs an info-level message.
func Info(format string, args ...interface{}) {
	base.Info().Msgf(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...interface{}) {
	base.Warn().Msgf(format, args...)
}

// Error logs an error-level message.
func Error(format string, args ...interface{}) {
	base.Error().Msgf(format, args...)
}

// Success logs a successful outcome, at info level with a distinct name so
// it reads differently in a scrollback than routine progress messages.
func Success(format string, args ...interface{}) {
	base.Info().Str("outcome", "success").Msgf(format, args...)
}

// Fatal logs at fatal level and exits the process with status 1.
func Fatal(format string, args ...interface{}) {
	base.Fatal().Msgf(format, args...)
}

// InfoCyan logs an info message flagged for emphasis in the console writer.
func InfoCyan(format string, args ...interface{}) {
	base.Info().Bool("highlight", true).Msgf(format, args...)
}

// Section logs a banner-style section marker, delimiting a phase of startup
// in an otherwise line-oriented log stream.
func Section(title string) {
	base.Info().Msg("════════════════════════════════════════════════════════")
	base.Info().Msg(title)
	base.Info().Msg("════════════════════════════════════════════════════════")
}

// Banner logs the startup identity of the process: name and version.
func Banner(title, version string) {
	base.Info().Str("version", version).Msg(title)
}
