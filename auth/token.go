// Package auth issues the per-process shared secret and checks request
// credentials against it.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// tokenBytes matches a 32 hex character token.
const tokenBytes = 16

// ErrUnauthorized is returned when a request carries no valid credential.
var ErrUnauthorized = errors.New("unauthorized")

// Token is the process-lifetime secret. Its value must never be logged.
type Token struct {
	value string
}

// Issue generates a fresh random token.
func Issue() (Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, fmt.Errorf("failed to generate token: %w", err)
	}
	return Token{value: hex.EncodeToString(buf)}, nil
}

// New wraps an existing secret. Intended for tests and clients.
func New(value string) Token {
	return Token{value: value}
}

// Value returns the raw secret, for the bootstrap response only.
func (t Token) Value() string { return t.value }

// String hides the secret so a stray %v cannot leak it into logs.
func (t Token) String() string { return "[redacted]" }

// Verify reports whether credential exactly equals the token.
func (t Token) Verify(credential string) bool {
	if t.value == "" || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t.value), []byte(credential)) == 1
}

// VerifyRequest checks the Authorization bearer header and, when allowQuery
// is set, the "token" query parameter. Query tokens exist for streaming
// clients that cannot set headers.
func (t Token) VerifyRequest(r *http.Request, allowQuery bool) error {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && t.Verify(bearer) {
		return nil
	}
	if allowQuery && t.Verify(r.URL.Query().Get("token")) {
		return nil
	}
	return ErrUnauthorized
}
