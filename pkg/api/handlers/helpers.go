// Package handlers provides the HTTP handlers of the memvault API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/memvault/memvault/pkg/api/middleware"
	"github.com/memvault/memvault/pkg/api/response"
	"github.com/memvault/memvault/pkg/auth"
	"github.com/memvault/memvault/pkg/memory"
)

// NamespaceChecker enforces the namespace grant of a principal.
// *auth.Gate satisfies it.
type NamespaceChecker interface {
	CheckNamespace(p *auth.Principal, namespace string) error
}

// namespaceOrDefault trims ns and falls back to the default namespace.
func namespaceOrDefault(ns string) string {
	if ns = strings.TrimSpace(ns); ns == "" {
		return memory.DefaultNamespace
	}
	return ns
}

// authorizeNamespace checks the request principal against namespace.
func authorizeNamespace(gate NamespaceChecker, r *http.Request, namespace string) error {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return fmt.Errorf("%w: invalid or missing API key", memory.ErrUnauthenticated)
	}
	return gate.CheckNamespace(p, namespace)
}

// decodeJSON decodes the body into dst and validates it. An empty body
// decodes to the zero value.
func decodeJSON(r *http.Request, v *validator.Validate, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", memory.ErrValidation, err)
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// fieldErrors is a validation failure keyed by request field.
type fieldErrors map[string]string

func (fe fieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, field := range slices.Sorted(maps.Keys(fe)) {
		msgs = append(msgs, fe[field])
	}
	return memory.ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

func (fe fieldErrors) Unwrap() error { return memory.ErrValidation }

// Details lists the message of every failing field.
func (fe fieldErrors) Details() map[string]any {
	out := make(map[string]any, len(fe))
	for field, msg := range fe {
		out[field] = msg
	}
	return map[string]any{"fields": out}
}

// validationError renders validator failures as one readable message, with
// per-field messages kept for the envelope details.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", memory.ErrValidation, err)
	}
	fields := make(fieldErrors, len(verrs))
	for _, fe := range verrs {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fe.Field() + " is required"
		case "oneof":
			msg = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
		case "min", "max":
			msg = fmt.Sprintf("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param())
		default:
			msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		fields[fieldPath(fe.Namespace())] = msg
	}
	return fields
}

// fieldPath drops the top-level type name: "IngestRequest.Events[0].Kind"
// becomes "Events[0].Kind".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	response.HandleError(w, err, middleware.GetRequestID(r.Context()))
}
