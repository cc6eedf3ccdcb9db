package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel defines severity for logger output.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// ParseLogLevel accepts error, warn, info and debug.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "", "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger provides leveled logging on top of zerolog.
type Logger struct {
	level  LogLevel
	logger zerolog.Logger
}

// NewLogger creates a console logger on stdout with the given level and component name.
func NewLogger(level LogLevel, component string) *Logger {
	return NewLoggerTo(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}, level, component)
}

// NewLoggerTo creates a logger writing to w; pass a plain writer for JSON output.
func NewLoggerTo(w io.Writer, level LogLevel, component string) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	if component != "" {
		zl = zl.With().Str("component", component).Logger()
	}
	return &Logger{level: level, logger: zl}
}

// SetLevel adjusts current logging level.
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.level = level
	l.logger = l.logger.Level(level.zerolog())
}

// Zerolog exposes the underlying logger for packages that take one.
func (l *Logger) Zerolog() zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.logger
}

// With returns a child logger tagged with another component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{level: l.level, logger: l.logger.With().Str("component", component).Logger()}
}

func (l *Logger) logf(target LogLevel, format string, args ...any) {
	if l == nil || target > l.level {
		return
	}
	l.logger.WithLevel(target.zerolog()).Msgf(format, args...)
}

// Debugf prints debug messages.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LogLevelDebug, format, args...)
}

// Infof prints info messages.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LogLevelInfo, format, args...)
}

// Warnf prints warning messages.
func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LogLevelWarn, format, args...)
}

// Errorf prints error messages.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LogLevelError, format, args...)
}

var defaultLogger = NewLogger(LogLevelInfo, "trace")

// GetLogger returns the global logger.
func GetLogger() *Logger {
	return defaultLogger
}

// SetLogger replaces the global logger and points the package-level zerolog
// logger used by the library packages at the same sink.
func SetLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
	log.Logger = l.logger
}

// ConfigureLogging builds the process logger from cfg and installs it.
func ConfigureLogging(cfg LogConfig) (*Logger, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var l *Logger
	if cfg.Format == "json" {
		l = NewLoggerTo(os.Stderr, level, "trace")
	} else {
		l = NewLogger(level, "trace")
	}
	SetLogger(l)
	return l, nil
}
