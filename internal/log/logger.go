package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger and remembers the component it logs for.
type Logger struct {
	*slog.Logger
	component string
	base      slog.Handler
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// JSON switches from the text handler to the JSON handler.
	JSON    bool
	Output  io.Writer
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

// New creates a new logger with the given configuration
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.JSON {
			handler = slog.NewJSONHandler(out, opts)
		} else {
			handler = slog.NewTextHandler(out, opts)
		}
	}

	component := config.Component
	if component == "" {
		component = ComponentApp
	}
	return &Logger{
		Logger:    slog.New(handler).With(FieldComponent, component),
		component: component,
		base:      handler,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
		base:      l.base,
	}
}

// WithComponent returns a logger that reports under another component.
// Attributes added with With are not carried over.
func (l *Logger) WithComponent(component string) *Logger {
	base := l.base
	if base == nil {
		base = l.Logger.Handler()
	}
	return &Logger{
		Logger:    slog.New(base).With(FieldComponent, component),
		component: component,
		base:      base,
	}
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

type contextKey struct{}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the context, falling back to the
// default slog logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}
