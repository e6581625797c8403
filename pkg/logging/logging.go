package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

type Fields struct {
	Service    string
	OrderID    string
	EventID    string
	SessionID  string
	Step       string
	Status     string
	Count      int
	DurationMS int64
	Message    string
	Error      string
}

var logger atomic.Pointer[slog.Logger]

func init() {
	SetOutput(os.Stderr)
}

// SetOutput redirects all log lines; tests point it at a buffer.
func SetOutput(w io.Writer) {
	logger.Store(slog.New(slog.NewJSONHandler(w, nil)))
}

// Log writes one JSON line. Lines carrying an Error are logged at error level.
func Log(fields Fields) {
	attrs := make([]slog.Attr, 0, 9)
	attrs = append(attrs, slog.String("service", fields.Service))
	add := func(key, v string) {
		if v != "" {
			attrs = append(attrs, slog.String(key, v))
		}
	}
	add("order_id", fields.OrderID)
	add("event_id", fields.EventID)
	add("session_id", fields.SessionID)
	add("step", fields.Step)
	add("status", fields.Status)
	if fields.Count != 0 {
		attrs = append(attrs, slog.Int("count", fields.Count))
	}
	if fields.DurationMS != 0 {
		attrs = append(attrs, slog.Int64("duration_ms", fields.DurationMS))
	}
	level := slog.LevelInfo
	if fields.Error != "" {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", fields.Error))
	}
	msg := fields.Message
	if msg == "" {
		msg = fields.Step
	}
	logger.Load().LogAttrs(context.Background(), level, msg, attrs...)
}
