package supervisor

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zerologToSlog adapts the daemon's global zerolog logger to the
// *slog.Logger sutureslog.Handler requires, so suture's own lifecycle
// events (service start/stop/panic) flow through the same structured
// logger as everything else rather than opening a second log pipeline.
func zerologToSlog(logger *zerolog.Logger) *slog.Logger {
	return slog.New(&zerologHandler{log: logger})
}

// zerologHandler is a minimal slog.Handler backed by a zerolog.Logger.
// It only needs to carry level, message, and attributes through; suture
// does not rely on slog groups.
type zerologHandler struct {
	log  *zerolog.Logger
	with []slog.Attr
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.log.GetLevel() <= zerologLevel(level)
}

func (h *zerologHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.log.WithLevel(zerologLevel(record.Level))
	for _, attr := range h.with {
		event = event.Interface(attr.Key, attr.Value.Any())
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = event.Interface(attr.Key, attr.Value.Any())
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &zerologHandler{log: h.log, with: append(append([]slog.Attr{}, h.with...), attrs...)}
}

func (h *zerologHandler) WithGroup(string) slog.Handler {
	return h
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
