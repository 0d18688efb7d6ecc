package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"loud", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	for level, want := range map[Level]string{
		DebugLevel: "debug",
		InfoLevel:  "info",
		WarnLevel:  "warn",
		ErrorLevel: "error",
		Level(42):  "unknown",
	} {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})

	log.Info("ingest complete", "namespace", "default", "events", 3)
	log.Debug("hidden")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["message"] != "ingest complete" {
		t.Errorf("expected message key, got %v", lines[0])
	}
	if lines[0]["namespace"] != "default" {
		t.Errorf("expected namespace attr, got %v", lines[0]["namespace"])
	}
}

func TestNew_NilConfig(t *testing.T) {
	if New(nil) == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestSlogLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})

	if log.GetLevel() != InfoLevel {
		t.Errorf("expected info, got %v", log.GetLevel())
	}

	log.SetLevel(DebugLevel)
	if log.GetLevel() != DebugLevel {
		t.Errorf("expected debug after SetLevel, got %v", log.GetLevel())
	}
	log.Debug("visible now")
	if !strings.Contains(buf.String(), "visible now") {
		t.Error("debug message should be written after lowering the level")
	}

	log.SetLevel(ErrorLevel)
	buf.Reset()
	log.Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("warn should be dropped at error level, got %q", buf.String())
	}
}

func TestSlogLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})
	child := log.With("component", "recall")

	log.SetLevel(DebugLevel)
	child.Debug("child debug")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["component"] != "recall" {
		t.Errorf("expected child line with component attr, got %v", lines)
	}
	if err := child.Close(); err != nil {
		t.Errorf("closing a derived logger should be a no-op: %v", err)
	}
}

func TestRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})

	log.Info("key created", "api_key", "ssot_abc", "Secret", "x", "name", "ci")

	out := buf.String()
	if strings.Contains(out, "ssot_abc") {
		t.Errorf("api key leaked: %s", out)
	}
	if !strings.Contains(out, `"name":"ci"`) {
		t.Errorf("unrelated attrs must pass through: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	log := Nop()
	ctx := log.WithContext(context.Background())
	if FromContext(ctx) != log {
		t.Error("expected logger stored in context")
	}
	if FromContext(context.Background()) != Global() {
		t.Error("expected global logger without one in context")
	}
}

func TestInfoContext_TraceFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "recall served")
	log.InfoContext(context.Background(), "untraced")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["trace_id"] != traceID.String() || lines[0]["span_id"] != spanID.String() {
		t.Errorf("expected trace fields, got %v", lines[0])
	}
	if _, ok := lines[1]["trace_id"]; ok {
		t.Error("untraced context must not carry trace_id")
	}
}

func TestSetGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	l := Nop()
	SetGlobal(l)
	if Global() != l {
		t.Error("SetGlobal should replace the global logger")
	}
	SetGlobal(nil)
	if Global() != l {
		t.Error("SetGlobal(nil) must be ignored")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memvault.log")
	log := New(&Config{Level: InfoLevel, Format: "text", Output: path})
	log.Info("to file")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected file content, got %q", data)
	}
}

func TestOpenOutput(t *testing.T) {
	if w, c := openOutput("stdout"); w != os.Stdout || c != nil {
		t.Error("stdout should not be closable")
	}
	if w, c := openOutput("stderr"); w != os.Stderr || c != nil {
		t.Error("stderr should not be closable")
	}
	if w, _ := openOutput("/nonexistent/dir/x.log"); w != os.Stdout {
		t.Error("unwritable path should fall back to stdout")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	var buf bytes.Buffer
	SetGlobal(New(&Config{Level: DebugLevel, Format: "json", Writer: &buf}))

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	if lines := decodeLines(t, &buf); len(lines) != 4 {
		t.Errorf("expected 4 lines from package-level helpers, got %d", len(lines))
	}
}

func TestContextWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: InfoLevel, Format: "json", Writer: &buf})

	ctx := ContextWithAttrs(context.Background(), "request_id", "req-1")
	ctx = ContextWithAttrs(ctx, "key_id", "k-7")
	if ContextWithAttrs(ctx) != ctx {
		t.Error("no args should return ctx unchanged")
	}

	log.InfoContext(ctx, "ingested", "items", 3)
	log.Info("plain")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["request_id"] != "req-1" || lines[0]["key_id"] != "k-7" || lines[0]["items"] != float64(3) {
		t.Errorf("expected context attributes, got %v", lines[0])
	}
	if _, ok := lines[1]["request_id"]; ok {
		t.Error("non-context call must not carry context attributes")
	}
}
