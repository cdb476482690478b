// Package logger is a thin structured logging facade over zap.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions attaches a key/value pair to a log line.
type LoggerOptions struct {
	Key  string
	Data any
}

var (
	mu     sync.RWMutex
	Logger = zap.NewNop()
)

// Init replaces the global logger. Level is one of debug, info, warn, error.
// Development mode switches to a console encoder.
func Init(level string, development bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	Set(l)
	return nil
}

// Set swaps the global logger, e.g. for an observer in tests.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Logger = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return Logger
}

func fields(payload []LoggerOptions) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(payload))
	for _, data := range payload {
		if err, ok := data.Data.(error); ok {
			zapFields = append(zapFields, zap.NamedError(data.Key, err))
			continue
		}
		zapFields = append(zapFields, zap.Any(data.Key, data.Data))
	}
	return zapFields
}

// Info logs info level messages.
func Info(msg string, payload ...LoggerOptions) {
	current().Info(msg, fields(payload)...)
}

// Warning logs recoverable problems.
func Warning(msg string, payload ...LoggerOptions) {
	current().Warn(msg, fields(payload)...)
}

// Error logs failures. Describe the incident in msg and pass the error
// through LoggerOptions with key "error".
func Error(msg string, payload ...LoggerOptions) {
	current().Error(msg, fields(payload)...)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}
