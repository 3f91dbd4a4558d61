package main

import (
	"log/slog"
	"os"
	"strings"
)

// initLogging configures the default slog logger from SUPERVISOR_LOG_LEVEL.
// The hook binary has no argv of its own worth parsing (the host runtime
// owns its invocation), so there is no CLI-flag override here.
func initLogging() {
	levelStr := strings.ToLower(os.Getenv("SUPERVISOR_LOG_LEVEL"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
