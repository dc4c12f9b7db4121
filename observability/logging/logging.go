// Package logging builds the process-wide slog logger from configuration.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures slog for the given level and format ("json" or "text"),
// tags every line with the service name, installs the result as the default
// logger and returns it. Unknown levels fall back to info.
func Setup(service, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	base := slog.New(handler)
	if service = strings.TrimSpace(service); service != "" {
		base = base.With(slog.String("service", service))
	}
	slog.SetDefault(base)

	// Route stdlib log output through the same handler so nothing bypasses
	// the structured stream.
	bridge := slog.NewLogLogger(handler, slog.LevelInfo)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
