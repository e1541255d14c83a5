package logger

import (
	"context"
	"sync"
)

// LoggerContext accumulates attributes over the course of an operation so
// that later log lines carry everything learned so far.
type LoggerContext struct {
	mu    sync.RWMutex
	base  *Logger
	attrs []any
}

// NewLoggerContext wraps l in a LoggerContext.
func NewLoggerContext(l *Logger) *LoggerContext { return &LoggerContext{base: l} }

// Add appends key/value pairs to every subsequent log line.
func (lc *LoggerContext) Add(args ...any) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.attrs = append(lc.attrs, args...)
}

// Logger returns a Logger carrying all accumulated attributes.
func (lc *LoggerContext) Logger() *Logger {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	if len(lc.attrs) == 0 {
		return lc.base
	}
	return lc.base.With(lc.attrs...)
}

func (lc *LoggerContext) Debug(ctx context.Context, msg string, args ...any) {
	lc.Logger().Debugc(ctx, 4, msg, args...)
}

func (lc *LoggerContext) Info(ctx context.Context, msg string, args ...any) {
	lc.Logger().Infoc(ctx, 4, msg, args...)
}

func (lc *LoggerContext) Warn(ctx context.Context, msg string, args ...any) {
	lc.Logger().Warnc(ctx, 4, msg, args...)
}

func (lc *LoggerContext) Error(ctx context.Context, msg string, args ...any) {
	lc.Logger().Errorc(ctx, 4, msg, args...)
}
