package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
)

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: logger.DebugLevel, Format: "json", Writer: &buf})

	gate := stubGate{principal: &auth.Principal{KeyID: "key-1", Role: memory.RoleReader}}
	h := RequestID()(Logger(log)(RequireRole(gate, "", memory.RoleReader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))))

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("invalid log line %q: %v", buf.String(), err)
	}
	if line["level"] != "WARN" {
		t.Errorf("4xx should log at warn, got %v", line["level"])
	}
	if line["request_id"] != "req-7" {
		t.Errorf("request_id = %v", line["request_id"])
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v", line["status"])
	}
	if line["size"] != float64(4) {
		t.Errorf("size = %v", line["size"])
	}
	if line["key_id"] != "key-1" {
		t.Errorf("key_id = %v", line["key_id"])
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/v1/recall", http.StatusOK, "INFO"},
		{"/health", http.StatusOK, "DEBUG"},
		{"/v1/recall", http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		log := logger.New(&logger.Config{Level: logger.DebugLevel, Format: "json", Writer: &buf})
		h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

		if !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
			t.Errorf("%s %d: expected level %s in %s", tt.path, tt.status, tt.level, buf.String())
		}
	}
}

func TestLogger_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: logger.InfoLevel, Format: "json", Writer: &buf})

	h := RequestID()(Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside handler")
	})))
	req := httptest.NewRequest(http.MethodGet, "/v1/recall", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.Contains(first, "inside handler") || !strings.Contains(first, `"request_id":"req-9"`) {
		t.Errorf("handler log should carry request_id, got %s", first)
	}
}
