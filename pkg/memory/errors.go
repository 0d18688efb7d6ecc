// Package memory defines the memvault data model, the shared error taxonomy and
// vector helpers used by every layer of the service.
package memory

import "errors"

// Sentinel errors. Callers wrap these with fmt.Errorf("...: %w", err) and the
// HTTP layer maps them with errors.Is.
var (
	// ErrUnauthenticated means the presented credential is unknown or inactive.
	ErrUnauthenticated = errors.New("memory: unauthenticated")
	// ErrForbidden means the credential role is below the required role.
	ErrForbidden = errors.New("memory: forbidden")
	// ErrNamespaceDenied means the credential is not granted the target namespace.
	ErrNamespaceDenied = errors.New("memory: namespace denied")
	// ErrValidation means the request is malformed.
	ErrValidation = errors.New("memory: validation failed")
	// ErrProviderUnavailable means the capability is not configured.
	ErrProviderUnavailable = errors.New("memory: provider unavailable")
	// ErrProviderError means a configured capability call failed.
	ErrProviderError = errors.New("memory: provider error")
	// ErrConflict means the write collides with existing state.
	ErrConflict = errors.New("memory: conflict")
	// ErrNotFound means a referenced row does not exist.
	ErrNotFound = errors.New("memory: not found")
	// ErrDimensionMismatch means a vector does not have the configured dimension.
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
)

// DefaultNamespace exists after first boot.
const DefaultNamespace = "default"

// WildcardNamespace grants every namespace to an admin credential.
const WildcardNamespace = "*"
