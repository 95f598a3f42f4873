package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with a fixed component attribute.
type Logger struct {
	*slog.Logger
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	// Format is "text" (default) or "json".
	Format  string
	Output  io.Writer
	Handler slog.Handler
}

// DefaultConfig returns sensible defaults for logging
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Format:    "text",
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
		if config.Format == "json" {
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
		Logger:    slog.New(componentHandler{Handler: handler, component: component}),
		component: component,
	}
}

// With returns a new logger with the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
	}
}

// WithComponent returns a logger that reports under another component,
// keeping the attributes already attached.
func (l *Logger) WithComponent(component string) *Logger {
	h := l.Logger.Handler()
	if ch, ok := h.(componentHandler); ok {
		h = ch.Handler
	}
	return &Logger{
		Logger:    slog.New(componentHandler{Handler: h, component: component}),
		component: component,
	}
}

// componentHandler adds the component attribute to records that do not
// name their own.
type componentHandler struct {
	slog.Handler
	component string
}

func (h componentHandler) Handle(ctx context.Context, r slog.Record) error {
	named := false
	r.Attrs(func(a slog.Attr) bool {
		named = a.Key == FieldComponent
		return !named
	})
	if !named {
		r.AddAttrs(slog.String(FieldComponent, h.component))
	}
	return h.Handler.Handle(ctx, r)
}

func (h componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return componentHandler{Handler: h.Handler.WithAttrs(attrs), component: h.component}
}

func (h componentHandler) WithGroup(name string) slog.Handler {
	return componentHandler{Handler: h.Handler.WithGroup(name), component: h.component}
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// Component returns the logger's component name
func (l *Logger) Component() string {
	return l.component
}
