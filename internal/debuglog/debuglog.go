// Package debuglog provides structured JSONL logging for stoac.
// Writes to {stateDir}/stoac.log at configurable debug levels.
package debuglog

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log rotation limits
const (
	maxSizeMB  = 5
	maxBackups = 2
)

// Logger writes structured log entries to the debug log file.
type Logger struct {
	log        *slog.Logger
	closer     io.Closer
	debugLevel int
}

// New creates a Logger writing to logPath. Logging is a no-op at debugLevel 0;
// level 3 also records debug-level entries.
func New(logPath string, debugLevel int) *Logger {
	if debugLevel < 1 || logPath == "" {
		return Discard()
	}
	w := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	l := NewWithWriter(w, debugLevel)
	l.closer = w
	return l
}

// NewWithWriter creates a Logger writing JSON lines to w.
func NewWithWriter(w io.Writer, debugLevel int) *Logger {
	level := slog.LevelInfo
	if debugLevel >= 3 {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{log: slog.New(handler), debugLevel: debugLevel}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{log: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Debug logs a free-form debug entry (debug level 3 only).
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	if l.debugLevel < 3 {
		return
	}
	l.log.DebugContext(ctx, msg, args...)
}

// CommandStored logs a store operation; source is "text", "history" or "interactive".
func (l *Logger) CommandStored(ctx context.Context, tag, source string, replaced bool) {
	if l.debugLevel < 1 {
		return
	}
	l.log.InfoContext(ctx, "command_stored",
		"tag", tag,
		"source", source,
		"replaced", replaced,
	)
}

// CommandLoaded logs a successful tag resolution.
func (l *Logger) CommandLoaded(ctx context.Context, tag string, printOnly bool) {
	if l.debugLevel < 1 {
		return
	}
	l.log.InfoContext(ctx, "command_loaded",
		"tag", tag,
		"print_only", printOnly,
	)
}

// LookupMissed logs a load that had no exact match.
func (l *Logger) LookupMissed(ctx context.Context, tag string, suggestions []string) {
	if l.debugLevel < 1 {
		return
	}
	l.log.WarnContext(ctx, "lookup_missed",
		"tag", tag,
		"suggestions", suggestions,
	)
}

// CommandExecuted logs the result of running a loaded command.
func (l *Logger) CommandExecuted(ctx context.Context, tag string, edited bool, exitCode int, elapsed time.Duration) {
	if l.debugLevel < 1 {
		return
	}
	l.log.InfoContext(ctx, "command_executed",
		"tag", tag,
		"edited", edited,
		"exit_code", exitCode,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// CommandDeleted logs a delete and whether the tag existed.
func (l *Logger) CommandDeleted(ctx context.Context, tag string, existed bool) {
	if l.debugLevel < 1 {
		return
	}
	l.log.InfoContext(ctx, "command_deleted",
		"tag", tag,
		"existed", existed,
	)
}

// Error logs a failure that ended the invocation.
func (l *Logger) Error(ctx context.Context, op string, err error) {
	if l.debugLevel < 1 {
		return
	}
	l.log.ErrorContext(ctx, "operation_failed",
		"op", op,
		"error", err.Error(),
	)
}
