package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey struct{}

// Debug enables debug logging and the additional debugging output
// (html dumps) written on failures.
var Debug = false

// Format selects the handler of the default logger. Either "text" or "json".
var Format = "text"

func GetLogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func InitializeDefaultLogger() {
	slog.SetDefault(NewLogger(os.Stdout))
}

// NewLogger returns a logger writing to w using the configured format and level.
func NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: GetLogLevel()}
	if Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
