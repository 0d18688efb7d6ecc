// Package response writes memvault HTTP bodies: JSON payloads, the plain
// text onboarding document and the error envelope.
package response

import (
	"encoding/json"
	"net/http"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

func writeHeader(w http.ResponseWriter, status int, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
}

// JSON encodes data with the given status. A nil data writes headers only.
func JSON(w http.ResponseWriter, status int, data any) {
	writeHeader(w, status, contentTypeJSON)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Text writes body as UTF-8 plain text.
func Text(w http.ResponseWriter, status int, body string) {
	writeHeader(w, status, contentTypeText)
	_, _ = w.Write([]byte(body))
}

// Error writes the error envelope.
func Error(w http.ResponseWriter, status int, code, message, requestID string) {
	ErrorWithDetails(w, status, code, message, nil, requestID)
}

// ErrorWithDetails writes the error envelope with structured details, such
// as per-field validation messages.
func ErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any, requestID string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
	}})
}

// Status writes the envelope for a bare status, e.g. from router fallbacks.
func Status(w http.ResponseWriter, status int, requestID string) {
	Error(w, status, ErrorCodeFromStatus(status), http.StatusText(status), requestID)
}
