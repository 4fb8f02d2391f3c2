package pkg

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Component identifies a subsystem for log filtering.
type Component string

// Driver component identifiers.
const (
	ComponentFrame    Component = "frame"
	ComponentPort     Component = "port"
	ComponentInbound  Component = "inbound"
	ComponentOutbound Component = "outbound"
	ComponentRegister Component = "register"
	ComponentHost     Component = "host"
	ComponentHAL      Component = "hal"
	ComponentCLI      Component = "cli"
)

// LogFormat selects the handler used by [SetLogFormat].
type LogFormat int

// Log format options.
const (
	LogFormatText LogFormat = iota
	LogFormatJSON
)

// String returns the configuration name of the format.
func (f LogFormat) String() string {
	if f == LogFormatJSON {
		return "json"
	}
	return "text"
}

// ParseLogFormat converts "text" or "json" into a [LogFormat]. An empty
// name selects text.
func ParseLogFormat(name string) (LogFormat, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return LogFormatText, nil
	case "json":
		return LogFormatJSON, nil
	}
	return LogFormatText, fmt.Errorf("%w: log format %q", ErrInvalidParameter, name)
}

// ParseLogLevel converts a level name such as "debug" or "WARN" into a
// [slog.Level].
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn, fmt.Errorf("%w: log level %q", ErrInvalidParameter, name)
	}
	return level, nil
}

// =============================================================================
// Logger
// =============================================================================

var (
	// logLevel is shared by every handler built here, so changing it takes
	// effect without replacing the logger.
	logLevel = new(slog.LevelVar)

	logger atomic.Pointer[slog.Logger]
)

func init() {
	logLevel.Set(slog.LevelWarn)
	logger.Store(NewLogger(os.Stderr, nil))
}

// Logger returns the logger all driver components write to.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the driver logger. A nil logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

// SetLogLevel sets the minimum level of loggers built by this package.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() slog.Level {
	return logLevel.Level()
}

// SetLogFormat replaces the driver logger with one writing format to
// os.Stderr at the current level.
func SetLogFormat(format LogFormat) {
	switch format {
	case LogFormatJSON:
		SetLogger(NewJSONLogger(os.Stderr, nil))
	default:
		SetLogger(NewLogger(os.Stderr, nil))
	}
}

// NewLogger creates a text logger writing to w. With nil opts it follows
// the level set by [SetLogLevel].
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a JSON logger writing to w. With nil opts it
// follows the level set by [SetLogLevel].
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: logLevel}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// =============================================================================
// Helpers
// =============================================================================

func emit(level slog.Level, component Component, msg string, args []any) {
	l := logger.Load()
	ctx := context.Background()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, msg, append([]any{"component", string(component)}, args...)...)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	emit(slog.LevelDebug, component, msg, args)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	emit(slog.LevelInfo, component, msg, args)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	emit(slog.LevelWarn, component, msg, args)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	emit(slog.LevelError, component, msg, args)
}
