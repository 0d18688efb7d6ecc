package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/memvault/memvault/pkg/memory"
)

// SecretPrefix marks every memvault API key.
const SecretPrefix = "ssot_"

// GenerateSecret returns a new plaintext key: the prefix followed by 32
// random bytes in unpadded URL-safe base64 (43 characters).
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret bcrypt-hashes a plaintext key.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

func verifySecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// digest is the credential cache key for a plaintext secret.
func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// KeyPreview masks a stored hash for listings.
func KeyPreview(hash string) string {
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return "bcrypt:" + hash + "..."
}

// NormalizeNamespaces trims, drops blanks, deduplicates and sorts names.
func NormalizeNamespaces(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// grants reports whether a namespace grant list covers ns.
func grants(namespaces []string, ns string) bool {
	return memory.Contains(namespaces, memory.WildcardNamespace) || memory.Contains(namespaces, ns)
}
