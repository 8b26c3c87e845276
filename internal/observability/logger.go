package observability

import (
	"io"
	"log/slog"
	"os"
	"time"
)

func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

// newLogger writes JSON lines with UTC timestamps. Development adds debug
// records and the calling source line.
func newLogger(w io.Writer, env string) *slog.Logger {
	dev := env == "development" || env == "dev"

	level := slog.LevelInfo
	if dev {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: dev,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	return slog.New(NewTraceHandler(handler))
}
