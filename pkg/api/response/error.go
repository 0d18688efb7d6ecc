package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// ErrorResponse is the envelope of every non-2xx JSON response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code, a message and the id of
// the request that failed.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// Error codes
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNamespaceDenied     = "NAMESPACE_DENIED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderError       = "PROVIDER_ERROR"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout      = "GATEWAY_TIMEOUT"
)

// Detailer is implemented by errors that carry envelope details.
type Detailer interface {
	Details() map[string]any
}

// Classify maps an error to its HTTP status and error code.
func Classify(err error) (int, string) {
	var unavailable *storage.StorageUnavailableError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, memory.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, memory.ErrNamespaceDenied):
		return http.StatusForbidden, ErrCodeNamespaceDenied
	case errors.Is(err, memory.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	// A provider returning a wrong-sized vector is a provider error, so this
	// precedes the dimension check below.
	case errors.Is(err, memory.ErrProviderError):
		return http.StatusBadGateway, ErrCodeProviderError
	case errors.Is(err, memory.ErrProviderUnavailable):
		return http.StatusBadRequest, ErrCodeProviderUnavailable
	case errors.Is(err, memory.ErrValidation), errors.Is(err, memory.ErrDimensionMismatch):
		return http.StatusBadRequest, ErrCodeValidationFailed
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, memory.ErrConflict):
		return http.StatusConflict, ErrCodeConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeGatewayTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternalServer
	}
}

// HandleError writes the envelope for err. Internal errors hide their cause;
// errors implementing Detailer contribute their details.
func HandleError(w http.ResponseWriter, err error, requestID string) {
	status, code := Classify(err)
	if status == http.StatusInternalServerError {
		Error(w, status, code, "internal server error", requestID)
		return
	}

	var details map[string]any
	var d Detailer
	if errors.As(err, &d) {
		details = d.Details()
	}
	ErrorWithDetails(w, status, code, err.Error(), details, requestID)
}

var statusCodes = map[int]string{
	http.StatusBadRequest:            ErrCodeBadRequest,
	http.StatusUnauthorized:          ErrCodeUnauthorized,
	http.StatusForbidden:             ErrCodeForbidden,
	http.StatusNotFound:              ErrCodeNotFound,
	http.StatusMethodNotAllowed:      ErrCodeMethodNotAllowed,
	http.StatusConflict:              ErrCodeConflict,
	http.StatusRequestEntityTooLarge: ErrCodePayloadTooLarge,
	http.StatusBadGateway:            ErrCodeProviderError,
	http.StatusServiceUnavailable:    ErrCodeServiceUnavailable,
	http.StatusGatewayTimeout:        ErrCodeGatewayTimeout,
}

// ErrorCodeFromStatus returns the envelope code for a bare HTTP status.
func ErrorCodeFromStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return ErrCodeInternalServer
}
