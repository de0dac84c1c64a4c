// Package auth provides offline bearer-token provisioning for operators:
// generating a new token for UNIONSQUARE_ACCEPTED_TOKENS (or a config
// file) together with its hash, without ever touching the hot path.
//
// Two hash modes are provided for different purposes:
//   - SHA256 (HashTokenSHA256): what the hot-path auth middleware actually
//     compares against (config.AuthConfig.Accepts) — fast enough to run on
//     every request within the 5ms budget (§9).
//   - bcrypt (HashToken/VerifyToken): reserved for an operator-facing
//     provisioning record (e.g. a future admin API storing who a token was
//     issued to) where the ~60ms cost of bcrypt is paid once, offline, and
//     never on the request path.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenHasher generates bearer tokens and hashes them for either storage
// mode.
type TokenHasher struct {
	bcryptCost int
}

// NewTokenHasher constructs a TokenHasher at bcrypt's default cost.
func NewTokenHasher() *TokenHasher {
	return &TokenHasher{bcryptCost: bcrypt.DefaultCost}
}

// GenerateSecureToken returns a new cryptographically random token
// (base64url-encoded, length random bytes) and its SHA256 hash. The plain
// token is what goes in UNIONSQUARE_ACCEPTED_TOKENS and to the client;
// config.Load hashes it into the same SHA256 form for the accepted set.
func (t *TokenHasher) GenerateSecureToken(length int) (plainToken string, hashedToken string, err error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: generate token: %w", err)
	}
	plainToken = base64.URLEncoding.EncodeToString(raw)
	hashedToken = t.HashTokenSHA256(plainToken)
	return plainToken, hashedToken, nil
}

// HashTokenSHA256 hashes token the same way config.HashToken and the hot
// path's Accepts check do, so the hash returned for a generated token is
// the entry config.Load puts in the accepted set for it.
func (t *TokenHasher) HashTokenSHA256(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.URLEncoding.EncodeToString(sum[:])
}

// HashToken bcrypt-hashes token for an offline provisioning record. Never
// used on the hot path — bcrypt's cost is the point.
func (t *TokenHasher) HashToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), t.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt hash token: %w", err)
	}
	return string(hashed), nil
}

// VerifyToken compares a plain token against a bcrypt hash produced by
// HashToken.
func (t *TokenHasher) VerifyToken(plainToken, hashedToken string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken)) == nil
}
