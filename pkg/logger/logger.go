// Package logger provides structured logging for the validator.
package logger

import (
	"io"
	"math"
	"os"
	"strings"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// Level represents the logging level.
type Level int

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelNone:
		return "none"
	default:
		return ""
	}
}

// ParseLevel maps a level name to a Level. Unknown names give LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off", "disabled":
		return LevelNone
	default:
		return LevelInfo
	}
}

func (l Level) charm() charmlog.Level {
	switch l {
	case LevelDebug:
		return charmlog.DebugLevel
	case LevelInfo:
		return charmlog.InfoLevel
	case LevelWarn:
		return charmlog.WarnLevel
	case LevelError:
		return charmlog.ErrorLevel
	default:
		return charmlog.Level(math.MaxInt32)
	}
}

// Format selects the log line encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const prefix = "tissguard"

// Logger writes structured key/value log lines.
type Logger struct {
	charm *charmlog.Logger
	level atomic.Int32
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(os.Stderr, LevelInfo))
}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger.Store(l)
	}
}

// New creates a text logger.
func New(output io.Writer, level Level) *Logger {
	return NewWithFormat(output, level, FormatText)
}

// NewWithFormat creates a logger with the given line format.
func NewWithFormat(output io.Writer, level Level, format Format) *Logger {
	charm := charmlog.NewWithOptions(output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          prefix,
		Level:           level.charm(),
	})
	if format == FormatJSON {
		charm.SetFormatter(charmlog.JSONFormatter)
	} else {
		charm.SetFormatter(charmlog.TextFormatter)
	}
	l := &Logger{charm: charm}
	l.level.Store(int32(level)) //nolint:gosec // small enum
	return l
}

// Level returns the current level.
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level)) //nolint:gosec // small enum
	l.charm.SetLevel(level.charm())
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.charm.SetOutput(w)
}

// With returns a child logger that adds keyvals to every line.
func (l *Logger) With(keyvals ...any) *Logger {
	child := &Logger{charm: l.charm.With(keyvals...)}
	child.level.Store(l.level.Load())
	return child
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.charm.Debug(msg, keyvals...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.charm.Info(msg, keyvals...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.charm.Warn(msg, keyvals...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.charm.Error(msg, keyvals...)
}

// Package-level convenience functions.

// Debug logs a debug message using the default logger.
func Debug(msg string, keyvals ...any) {
	Default().Debug(msg, keyvals...)
}

// Info logs an info message using the default logger.
func Info(msg string, keyvals ...any) {
	Default().Info(msg, keyvals...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, keyvals ...any) {
	Default().Warn(msg, keyvals...)
}

// Error logs an error message using the default logger.
func Error(msg string, keyvals ...any) {
	Default().Error(msg, keyvals...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level Level) {
	Default().SetLevel(level)
}

// SetOutput sets the output of the default logger.
func SetOutput(w io.Writer) {
	Default().SetOutput(w)
}

// Disable disables all logging.
func Disable() {
	Default().SetLevel(LevelNone)
}
