// Package logger provides structured logging for memvault.
//
// Loggers wrap log/slog. Calls that take a context add the trace and span
// ids of the active span, plus any attributes stored with ContextWithAttrs,
// so service logs carry the request id and API key id of the call that
// caused them.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Level represents logging levels.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[Level]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
}

var slogLevels = map[Level]slog.Level{
	DebugLevel: slog.LevelDebug,
	InfoLevel:  slog.LevelInfo,
	WarnLevel:  slog.LevelWarn,
	ErrorLevel: slog.LevelError,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLevel parses a level name case-insensitively. Unknown names are info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return WarnLevel
	}
	for l, name := range levelNames {
		if name == s {
			return l
		}
	}
	return InfoLevel
}

func slogLevel(l Level) slog.Level {
	if sl, ok := slogLevels[l]; ok {
		return sl
	}
	return slog.LevelInfo
}

func fromSlogLevel(sl slog.Level) Level {
	switch {
	case sl <= slog.LevelDebug:
		return DebugLevel
	case sl <= slog.LevelInfo:
		return InfoLevel
	case sl <= slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Config holds logger configuration.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output string // "stdout", "stderr", or file path

	// Writer overrides Output when set.
	Writer io.Writer
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithContext(ctx context.Context) context.Context

	SetLevel(level Level)
	GetLevel() Level

	// Close releases the output file, if the logger opened one.
	Close() error
}

// SlogLogger is a Logger implementation using log/slog.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// redactedKeys never reach the log output verbatim.
var redactedKeys = map[string]bool{
	"api_key":        true,
	"secret":         true,
	"password":       true,
	"openai_api_key": true,
	"x-api-key":      true,
}

// New creates a Logger. A nil cfg logs info and above as JSON to stdout.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Format: "json", Output: "stdout"}
	}

	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Level))

	var closer io.Closer
	w := cfg.Writer
	if w == nil {
		w, closer = openOutput(cfg.Output)
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.Level == DebugLevel,
		ReplaceAttr: replaceAttr,
	}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	}

	return &SlogLogger{logger: slog.New(h), level: level, closer: closer}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return New(&Config{Level: ErrorLevel, Format: "text", Writer: io.Discard})
}

// openOutput resolves an output name. Files are opened for append; when that
// fails the logger falls back to stdout rather than refusing to start.
func openOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return os.Stdout, nil
	}
	return f, f
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == slog.MessageKey:
		a.Key = "message"
	case redactedKeys[strings.ToLower(a.Key)]:
		a.Value = slog.StringValue("[REDACTED]")
	}
	return a
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, contextFields(ctx, args)...)
}

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, contextFields(ctx, args)...)
}

func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, contextFields(ctx, args)...)
}

func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, contextFields(ctx, args)...)
}

// With returns a child logger. Children share the parent's level and never
// close its output.
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...), level: l.level}
}

// WithContext stores l in ctx for FromContext.
func (l *SlogLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// SetLevel changes the level of l and every logger derived from it.
func (l *SlogLogger) SetLevel(level Level) { l.level.Set(slogLevel(level)) }

func (l *SlogLogger) GetLevel() Level { return fromSlogLevel(l.level.Level()) }

func (l *SlogLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

type (
	loggerKey struct{}
	attrsKey  struct{}
)

// FromContext returns the logger stored by WithContext, or the global one.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Global()
}

// ContextWithAttrs returns a context whose *Context log calls include args,
// after any attributes already stored in ctx.
func ContextWithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(attrsKey{}).([]any)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func contextFields(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	stored, _ := ctx.Value(attrsKey{}).([]any)
	sc := trace.SpanContextFromContext(ctx)
	if len(stored) == 0 && !sc.IsValid() {
		return args
	}

	out := make([]any, 0, len(stored)+len(args)+4)
	out = append(out, stored...)
	out = append(out, args...)
	if sc.IsValid() {
		out = append(out, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return out
}

var (
	globalMu sync.RWMutex
	global   Logger = New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"})
)

// Global returns the process-wide logger.
func Global() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the process-wide logger. nil is ignored.
func SetGlobal(l Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }
