package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init configures the default slog logger. LOG_FORMAT=json selects the JSON
// handler; LOG_LEVEL picks the level (debug, info, warn, error).
func Init(service string) *slog.Logger {
	return initTo(os.Stdout, service, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
}

func initTo(w io.Writer, service, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	json := strings.EqualFold(format, "json")
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "json", json)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
