package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/memvault/memvault/pkg/logger"
	"github.com/memvault/memvault/pkg/memory"
	"github.com/memvault/memvault/pkg/storage"
)

// Backend is the persistence the credential store needs.
type Backend interface {
	storage.CredentialStore
	MissingNamespaces(ctx context.Context, names []string) ([]string, error)
}

// Config holds CredentialStore settings.
type Config struct {
	// CacheSize bounds resolved credentials kept in memory.
	CacheSize int64
	// CacheTTL expires resolved credentials.
	CacheTTL time.Duration
	// BcryptCost is the hashing cost; zero means bcrypt.DefaultCost.
	BcryptCost int
}

// CredentialStore resolves, issues and revokes API keys. Resolved
// credentials are cached by the SHA-256 digest of the secret.
type CredentialStore struct {
	backend Backend
	cache   *ristretto.Cache[string, *memory.Credential]
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
}

// NewCredentialStore creates a CredentialStore over backend.
func NewCredentialStore(backend Backend, cfg Config, log logger.Logger) (*CredentialStore, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if log == nil {
		log = logger.Global()
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *memory.Credential]{
		NumCounters: cfg.CacheSize * 10,
		MaxCost:     cfg.CacheSize,
		BufferItems: 64,
		// Cost counts credentials, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create credential cache: %w", err)
	}
	return &CredentialStore{
		backend: backend,
		cache:   cache,
		cfg:     cfg,
		logger:  log.With("component", "auth"),
		now:     time.Now,
	}, nil
}

// Close releases the cache.
func (s *CredentialStore) Close() {
	s.cache.Close()
}

// Resolve maps a plaintext secret to its active credential, failing with
// memory.ErrUnauthenticated for unknown or inactive keys.
func (s *CredentialStore) Resolve(ctx context.Context, secret string) (*memory.Credential, error) {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return nil, memory.ErrUnauthenticated
	}
	key := digest(secret)
	if c, ok := s.cache.Get(key); ok {
		return c, nil
	}

	active, err := s.backend.ActiveCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	for _, c := range active {
		if verifySecret(secret, c.KeyHash) {
			if s.cfg.CacheTTL > 0 {
				s.cache.SetWithTTL(key, c, 1, s.cfg.CacheTTL)
			} else {
				s.cache.Set(key, c, 1)
			}
			s.cache.Wait()
			return c, nil
		}
	}
	return nil, memory.ErrUnauthenticated
}

// CreateKeyRequest describes a key to issue.
type CreateKeyRequest struct {
	Name       string
	Role       string
	Namespaces []string
}

// IssuedKey is a newly created credential and its plaintext, shown once.
type IssuedKey struct {
	Credential *memory.Credential
	Secret     string
}

// CreateKey validates req and persists a new credential.
func (s *CredentialStore) CreateKey(ctx context.Context, req CreateKeyRequest) (*IssuedKey, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", memory.ErrValidation)
	}
	role, err := memory.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	namespaces := NormalizeNamespaces(req.Namespaces)
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("%w: at least one namespace is required", memory.ErrValidation)
	}
	if memory.Contains(namespaces, memory.WildcardNamespace) && role != memory.RoleAdmin {
		return nil, fmt.Errorf("%w: only admin keys may be granted %q", memory.ErrValidation, memory.WildcardNamespace)
	}

	var named []string
	for _, ns := range namespaces {
		if ns != memory.WildcardNamespace {
			named = append(named, ns)
		}
	}
	missing, err := s.backend.MissingNamespaces(ctx, named)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown namespaces: %s", memory.ErrValidation, strings.Join(missing, ", "))
	}

	c, secret, err := s.mint(name, role, namespaces)
	if err != nil {
		return nil, err
	}
	if err := s.backend.CreateCredential(ctx, c); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "api key created", "key_id", c.ID, "name", c.Name, "role", string(c.Role))
	return &IssuedKey{Credential: c, Secret: secret}, nil
}

func (s *CredentialStore) mint(name string, role memory.Role, namespaces []string) (*memory.Credential, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := HashSecret(secret, s.cfg.BcryptCost)
	if err != nil {
		return nil, "", err
	}
	return &memory.Credential{
		ID:         uuid.NewString(),
		Name:       name,
		KeyHash:    hash,
		Role:       role,
		Namespaces: namespaces,
		Active:     true,
		CreatedAt:  s.now().UTC(),
	}, secret, nil
}

// KeyInfo is a credential as listed to admins.
type KeyInfo struct {
	*memory.Credential
	KeyPreview string `json:"key_preview"`
}

// ListKeys returns every credential newest first with a masked preview.
func (s *CredentialStore) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	creds, err := s.backend.ListCredentials(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]KeyInfo, len(creds))
	for i, c := range creds {
		out[i] = KeyInfo{Credential: c, KeyPreview: KeyPreview(c.KeyHash)}
	}
	return out, nil
}

// Revoke deactivates a credential and drops every cached resolution.
func (s *CredentialStore) Revoke(ctx context.Context, id string) error {
	if err := s.backend.DeactivateCredential(ctx, id); err != nil {
		return err
	}
	s.cache.Clear()
	s.logger.InfoContext(ctx, "api key revoked", "key_id", id)
	return nil
}

// Bootstrap creates the default and configured namespaces and, when no
// credential exists yet, mints an admin key granted those namespaces. The
// plaintext is returned (and logged once) only when a key was created.
func (s *CredentialStore) Bootstrap(ctx context.Context, namespaces []string) (string, error) {
	grant := NormalizeNamespaces(namespaces)
	if len(grant) == 0 {
		grant = []string{memory.DefaultNamespace}
	}

	create := []string{memory.DefaultNamespace}
	for _, ns := range grant {
		if ns != memory.WildcardNamespace && ns != memory.DefaultNamespace {
			create = append(create, ns)
		}
	}

	c, secret, err := s.mint("bootstrap-admin", memory.RoleAdmin, grant)
	if err != nil {
		return "", err
	}
	inserted, err := s.backend.Bootstrap(ctx, c, create)
	if err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	if !inserted {
		return "", nil
	}
	s.logger.WarnContext(ctx, "bootstrap admin key created; store it now, it is not shown again",
		"bootstrap_admin_key", secret, "namespaces", grant)
	return secret, nil
}
