// Package logging provides structured logging for the roster CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger.
type Options struct {
	// Console receives human-readable output. Nil means os.Stderr.
	Console io.Writer

	// File, when set, also writes JSON lines to a rotating log file.
	File string

	// Component is attached to every entry (e.g. "cli", "session").
	Component string
}

// Logger wraps zerolog with console formatting and optional file rotation.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer // current console writer
	file   *lumberjack.Logger
	opts   Options
}

// NewLogger creates a logger from options.
func NewLogger(opts Options) *Logger {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}

	l := &Logger{opts: opts}
	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	l.build(opts.Console)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
// Logs go to stderr so that stdout stays clean for table/json/yaml output.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{Component: "cli"})
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

func (l *Logger) build(console io.Writer) {
	l.output = console

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "15:04:05",
	}
	if l.file != nil {
		w = zerolog.MultiLevelWriter(w, l.file)
	}

	ctx := zerolog.New(w).With().Timestamp()
	if l.opts.Component != "" {
		ctx = ctx.Str("component", l.opts.Component)
	}
	l.zlog = ctx.Logger()
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Named returns a copy of the logger tagged with a different component.
func (l *Logger) Named(component string) *Logger {
	child := *l
	child.zlog = l.zlog.With().Str("component", component).Logger()
	return &child
}

// SetOutput changes the console writer, e.g. to print above a progress bar.
func (l *Logger) SetOutput(w io.Writer) {
	l.build(w)
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel maps a config value ("debug", "warn", ...) to a zerolog level.
// Unknown or empty values fall back to info.
func ParseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
