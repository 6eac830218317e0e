package conversation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/comigor/chatsync-go/internal/logger"
)

// Lifecycle event names.
const (
	EventLoadStart   = "load.start"
	EventLoadEnd     = "load.end"
	EventMergeResult = "merge.result"
	EventSendStart   = "send.start"
	EventSendEnd     = "send.end"
	EventClear       = "clear"
)

// Event is a lifecycle notification. Attrs are slog-style key/value pairs.
type Event struct {
	Name  string
	Attrs []any
	Err   error
}

// Hook observes engine lifecycle events.
type Hook func(ctx context.Context, ev Event)

// LogHook writes events to l: failures at warn, start events at debug,
// everything else at info.
func LogHook(l *slog.Logger) Hook {
	return func(ctx context.Context, ev Event) {
		level := slog.LevelInfo
		if strings.HasSuffix(ev.Name, ".start") {
			level = slog.LevelDebug
		}
		args := ev.Attrs
		if ev.Err != nil {
			level = slog.LevelWarn
			args = append(append([]any{}, ev.Attrs...), "error", ev.Err)
		}
		l.Log(ctx, level, ev.Name, args...)
	}
}

// DefaultHook logs to the global logger as it is when the event fires,
// so logger.SetOutput applies to engines created earlier.
func DefaultHook() Hook {
	return func(ctx context.Context, ev Event) {
		LogHook(logger.L)(ctx, ev)
	}
}
