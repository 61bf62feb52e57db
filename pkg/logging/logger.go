// Package logging provides structured logging on top of log/slog with the
// small surface this service needs: leveled output, json or text format, and
// per-component child loggers.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds logging configuration.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// Logger wraps a slog.Logger. The zero value is not usable; construct with New.
type Logger struct {
	slogger *slog.Logger
}

// New creates a logger writing to stdout.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return &Logger{slogger: slog.New(handler)}
}

// WithComponent returns a child logger tagging every entry with the component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{slogger: l.slogger.With(slog.String("component", component))}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *Logger) log(level slog.Level, msg string, fields []Field) {
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.slogger.Log(context.Background(), level, msg, attrs...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is one structured log attribute.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Error(err error) Field                      { return Field{Key: "error", Value: err.Error()} }
