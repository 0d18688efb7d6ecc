// Package auth implements API key credentials and the authorization gate
// that enforces role and namespace isolation on every entry point.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/metrics"
)

// Principal is the authenticated caller.
type Principal struct {
	KeyID      string
	Name       string
	Role       memory.Role
	Namespaces []string
}

// Allows reports whether the principal may touch namespace.
func (p *Principal) Allows(namespace string) bool {
	return grants(p.Namespaces, namespace)
}

// Resolver maps secrets to credentials.
type Resolver interface {
	Resolve(ctx context.Context, secret string) (*memory.Credential, error)
}

// Gate authorizes requests.
type Gate struct {
	resolver Resolver
	metrics  *metrics.Manager
}

// NewGate creates a Gate. m may be nil.
func NewGate(resolver Resolver, m *metrics.Manager) *Gate {
	return &Gate{resolver: resolver, metrics: m}
}

// Authenticate resolves secret to a principal without role or namespace checks.
func (g *Gate) Authenticate(ctx context.Context, secret string) (*Principal, error) {
	c, err := g.resolver.Resolve(ctx, secret)
	if err != nil {
		if errors.Is(err, memory.ErrUnauthenticated) {
			g.metrics.RecordAuth("unauthenticated")
			return nil, fmt.Errorf("%w: invalid or missing API key", memory.ErrUnauthenticated)
		}
		return nil, err
	}
	return &Principal{KeyID: c.ID, Name: c.Name, Role: c.Role, Namespaces: c.Namespaces}, nil
}

// AuthorizeRole checks the role only, for admin operations without a
// target namespace.
func (g *Gate) AuthorizeRole(ctx context.Context, secret string, required memory.Role) (*Principal, error) {
	p, err := g.Authenticate(ctx, secret)
	if err != nil {
		return nil, err
	}
	if err := g.CheckRole(p, required); err != nil {
		return nil, err
	}
	g.metrics.RecordAuth("allowed")
	return p, nil
}

// Authorize checks role and namespace. Error messages never name namespaces
// other than the requested one.
func (g *Gate) Authorize(ctx context.Context, secret string, required memory.Role, namespace string) (*Principal, error) {
	p, err := g.Authenticate(ctx, secret)
	if err != nil {
		return nil, err
	}
	if err := g.CheckRole(p, required); err != nil {
		return nil, err
	}
	if err := g.CheckNamespace(p, namespace); err != nil {
		return nil, err
	}
	g.metrics.RecordAuth("allowed")
	return p, nil
}

// CheckRole fails with memory.ErrForbidden when p is below required.
func (g *Gate) CheckRole(p *Principal, required memory.Role) error {
	if !p.Role.Satisfies(required) {
		g.metrics.RecordAuth("forbidden")
		return fmt.Errorf("%w: %s role required", memory.ErrForbidden, required)
	}
	return nil
}

// CheckNamespace fails with memory.ErrNamespaceDenied when p lacks namespace.
func (g *Gate) CheckNamespace(p *Principal, namespace string) error {
	if !p.Allows(namespace) {
		g.metrics.RecordAuth("namespace_denied")
		return fmt.Errorf("%w: API key is not authorized for namespace %q", memory.ErrNamespaceDenied, namespace)
	}
	return nil
}

type principalKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal attached by the HTTP middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
