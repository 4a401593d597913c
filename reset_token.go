package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// ResetTokenBytes is the entropy of a reset secret: 32 bytes = 64 hex chars.
const ResetTokenBytes = 32

// GenerateResetToken creates a random reset secret and its sha256 digest.
// The secret is handed to the user exactly once (by email); only the digest
// is stored server-side, so a database leak does not expose usable secrets.
func GenerateResetToken() (secret, digest string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	secret = hex.EncodeToString(buf)
	digest = HashResetToken(secret)

	return secret, digest, nil
}

// HashResetToken computes the sha256 hex digest of a reset secret. The store
// looks users up by this digest, never by the plaintext secret.
func HashResetToken(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks the plaintext secret against a stored digest in
// constant time.
func VerifyResetToken(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}
	computed := HashResetToken(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
