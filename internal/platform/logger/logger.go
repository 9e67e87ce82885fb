package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON structured logger writing to stdout. Components accept
// *slog.Logger so tests can swap in a discard handler.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
