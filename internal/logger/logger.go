package logger

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the process-wide slog handler. Records logged with a
// context carry the cycle run id and session key when present, so one
// session's trail can be followed across harvest, analysis and fan-out.
func Setup(level string) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
	})
	slog.SetDefault(slog.New(WithContextIDs(handler)))
}

// ParseLevel maps a config level string to a slog level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
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

// WithContextIDs wraps a handler so every record picks up the run id and
// session key stored on the context.
func WithContextIDs(h slog.Handler) slog.Handler {
	return contextHandler{h}
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if id := GetRunID(ctx); id != "" {
		rec.AddAttrs(slog.String("run_id", id))
	}
	if key := GetSessionKey(ctx); key != "" {
		rec.AddAttrs(slog.String("session", key))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
