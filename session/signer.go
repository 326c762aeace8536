// Package session issues and verifies self-contained admin session tokens.
//
// A token is base64url(JSON payload) "." base64url(HMAC-SHA256(payload)).
// There is no server-side session table, so a token cannot be revoked
// individually: rotating the secret invalidates every outstanding token.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin = "ADMIN"

	// DefaultTTL is the admin session lifetime used when none is configured.
	DefaultTTL = 7 * 24 * time.Hour

	// MinSecretLength is the shortest accepted signing secret, in bytes.
	MinSecretLength = 32
)

var (
	ErrMissingSecret    = errors.New("session secret is not configured")
	ErrWeakSecret       = errors.New("session secret must be at least 32 characters")
	ErrMalformedToken   = errors.New("malformed session token")
	ErrInvalidSignature = errors.New("invalid session signature")
	ErrExpired          = errors.New("session expired")
)

// AdminSession is the signed payload. Timestamps are epoch milliseconds.
type AdminSession struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s AdminSession) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s AdminSession) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt).UTC()
}

type Option func(*Signer)

func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// Signer holds the signing secret. It is safe for concurrent use.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string, opts ...Option) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	s := &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign stamps ExpiresAt = now + ttl and returns the token. ttl is taken
// literally: zero yields a token valid only at its issue instant and a
// negative ttl one that is already expired. Callers wanting the usual
// lifetime pass DefaultTTL.
func (s *Signer) Sign(sess AdminSession, ttl time.Duration) (string, error) {
	now := s.now()
	if sess.Timestamp == 0 {
		sess.Timestamp = now.UnixMilli()
	}
	sess.ExpiresAt = now.Add(ttl).UnixMilli()

	raw, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + s.mac(payload), nil
}

// Verify checks the signature before decoding anything, then the expiry.
// A session is still valid at the exact ExpiresAt millisecond.
func (s *Signer) Verify(token string) (AdminSession, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" || strings.Contains(signature, ".") {
		return AdminSession{}, ErrMalformedToken
	}

	if !hmac.Equal([]byte(signature), []byte(s.mac(payload))) {
		return AdminSession{}, ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return AdminSession{}, ErrMalformedToken
	}
	var sess AdminSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return AdminSession{}, ErrMalformedToken
	}

	if s.now().UnixMilli() > sess.ExpiresAt {
		return AdminSession{}, ErrExpired
	}
	return sess, nil
}

func (s *Signer) mac(payload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// GenerateSecret returns 32 random bytes, base64 encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}
