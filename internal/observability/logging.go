package observability

import (
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/lmittmann/tint"
)

// NewLogger creates a structured logger and sets it as the slog default.
// format "text" selects colourised console output for local development;
// anything else emits JSON.
func NewLogger(level, format string) *slog.Logger {
	if !strings.EqualFold(format, "text") {
		return sharedobs.NewLogger(level, format)
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      parseLevel(level),
		AddSource:  true,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
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
	default:
		return slog.LevelInfo
	}
}
