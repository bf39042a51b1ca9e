// Package logging builds the process-wide structured logger every
// other package's diagnostics sink into: capability misuse warnings,
// snapshot pool exhaustion, slow-host ticks, and rollback session
// events. log/slog carries the whole surface rather than a third-party
// logger, since structured logging needs nothing a third-party library
// would add here.
package logging

import (
	"log/slog"
	"os"
)

// New builds a structured logger writing to stderr at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// "info").
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
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

// CapabilityWarn adapts a *capability.Error into a slog call without
// internal/logging depending on internal/capability: callers pass the
// already-formatted message and fields.
func CapabilityWarn(log *slog.Logger, call, message string) {
	log.Warn("capability misuse", "call", call, "message", message)
}

// SnapshotWarn logs a Snapshot Manager diagnostic (pool exhaustion,
// oversized buffer dropped).
func SnapshotWarn(log *slog.Logger, message string) {
	log.Warn("snapshot", "message", message)
}

// SlowHost logs a Deterministic Loop backlog diagnostic.
func SlowHost(log *slog.Logger, backlogTicks int) {
	log.Warn("slow host", "backlog_ticks", backlogTicks)
}

// RollbackEvent logs a Rollback Session event.
func RollbackEvent(log *slog.Logger, kind string, fields ...any) {
	args := append([]any{"kind", kind}, fields...)
	log.Info("rollback event", args...)
}
