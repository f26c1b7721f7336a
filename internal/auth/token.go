// Package auth implements session identity for the BalanceGuard gateway:
// opaque token generation and hashing, session issue/resolve/revoke, the
// per-surface cookie lifecycle, and credential verification at login.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TokenGenerator abstracts entropy sources for testability.
type TokenGenerator interface {
	GenerateSessionToken() (string, error)
	GenerateCSRFToken() (string, error)
}

// CryptoTokenGenerator is the production TokenGenerator backed by
// crypto/rand.
type CryptoTokenGenerator struct{}

// GenerateSessionToken generates the opaque value handed to the browser.
// Format: 32 random bytes, hex encoded (64 chars). The value carries no
// claims; the server stores only its hash.
func (CryptoTokenGenerator) GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateCSRFToken generates the double-submit token. Minted independently
// of the session token so neither can be derived from the other.
// Format: 32 random bytes, hex encoded (64 chars).
func (CryptoTokenGenerator) GenerateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the SHA-256 hex digest of a raw session token. Only this
// digest is ever persisted; a database leak exposes no usable cookies.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CanonicalizeEmail normalizes email addresses for consistent DB lookups.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
