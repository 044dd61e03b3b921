package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// NewExternalID returns a fresh opaque principal identifier.
func NewExternalID() string {
	return uuid.NewString()
}

// NewNumericCode returns a cryptographically random numeric code of the
// given length, used for email confirmation and password reset challenges.
func NewNumericCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HashCode hashes a one-time code for at-rest storage. Plaintext codes are
// never persisted.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// HashDevice derives the session device fingerprint from the caller's IP and
// User-Agent. Both empty yields the zero hash, which is stored as-is.
func HashDevice(ip, userAgent string) [32]byte {
	if ip == "" && userAgent == "" {
		return [32]byte{}
	}
	return sha256.Sum256([]byte(ip + "\x00" + userAgent))
}
