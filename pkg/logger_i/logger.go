package logger_i

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
	"github.com/lmittmann/tint"
)

// Logger keeps its attributes and resolves slog.Default on every call,
// so package level loggers created before Init still use the configured handler.
type Logger struct {
	attrs []any
}

func Init() {
	options := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	var handler slog.Handler
	switch {
	case config.IS_PROD || os.Getenv("LOG_FORMAT") == "json":
		options.Level = config.LOG_LEVEL_PROD
		handler = slog.NewJSONHandler(os.Stdout, options)
	case os.Getenv("LOG_FORMAT") == "text":
		handler = slog.NewTextHandler(os.Stdout, options)
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      options.Level,
			TimeFormat: time.TimeOnly,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func NewLogger(section string) *Logger {
	return &Logger{attrs: []any{"component", section}}
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	inner := slog.Default()
	if !inner.Enabled(context.Background(), level) {
		return
	}
	inner.With(l.attrs...).Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	return &Logger{attrs: append(attrs, args...)}
}

// WithTrace attaches the request trace id carried by ctx, if there is one.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if trace, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok && trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
