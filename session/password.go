package session

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	PasswordIterations = 100000
	passwordKeyLength  = 64
	passwordSaltBytes  = 32
	// maxPasswordIterations bounds the work a stored hash can demand.
	maxPasswordIterations = 10_000_000
)

var ErrEmptyPassword = errors.New("password is empty")

// HashPassword derives a PBKDF2-HMAC-SHA512 key and returns
// "<salt-hex>:<iterations>:<key-hex>". The hex salt string itself is the
// KDF salt input, so hashes interoperate with the existing stored format.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	buf := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	salt := hex.EncodeToString(buf)
	key := pbkdf2.Key([]byte(password), []byte(salt), PasswordIterations, passwordKeyLength, sha512.New)
	return salt + ":" + strconv.Itoa(PasswordIterations) + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword reports whether password matches encoded. It accepts the
// PBKDF2 format produced by HashPassword and bcrypt hashes.
func VerifyPassword(password, encoded string) bool {
	encoded = strings.TrimSpace(encoded)
	if isBcrypt(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}

	salt, iterations, want, ok := parsePBKDF2(encoded)
	if !ok {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, passwordKeyLength, sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// IsEncodedHash reports whether encoded is structurally a hash that
// VerifyPassword can check. It does no key derivation.
func IsEncodedHash(encoded string) bool {
	encoded = strings.TrimSpace(encoded)
	if isBcrypt(encoded) {
		_, err := bcrypt.Cost([]byte(encoded))
		return err == nil
	}
	_, _, _, ok := parsePBKDF2(encoded)
	return ok
}

func parsePBKDF2(encoded string) (salt string, iterations int, key []byte, ok bool) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", 0, nil, false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 || iterations > maxPasswordIterations {
		return "", 0, nil, false
	}
	key, err = hex.DecodeString(parts[2])
	if err != nil || len(key) != passwordKeyLength {
		return "", 0, nil, false
	}
	return parts[0], iterations, key, true
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
