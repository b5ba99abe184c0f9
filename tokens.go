package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RefreshTokenEntropy is the number of random bytes behind an opaque refresh
// token value.
const RefreshTokenEntropy = 48

// VerificationTokenEntropy is the number of random bytes behind a link-mode
// verification token value.
const VerificationTokenEntropy = 32

var codeSpace = big.NewInt(1_000_000)

// GenerateToken returns a URL-safe opaque value backed by n random bytes.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateRefreshToken returns a fresh opaque refresh token value.
func GenerateRefreshToken() (string, error) {
	return GenerateToken(RefreshTokenEntropy)
}

// GenerateVerificationCode returns a uniformly random 6-digit decimal code,
// zero-padded so "048213" is a valid value.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashToken digests an opaque credential for storage. Raw values are already
// high-entropy secrets, so a fast digest is sufficient; passwords go through
// the argon2 hasher instead.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
