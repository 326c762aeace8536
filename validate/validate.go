// Package validate checks request fields against the storefront's input
// rules. Sanitizing happens after validation succeeds.
package validate

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const MaxEmailLength = 254

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects failures in the order the rules ran.
type Errors []FieldError

func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

func (e Errors) Empty() bool { return len(e) == 0 }

// First is the message surfaced to end users.
func (e Errors) First() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Message
}

// Details renders the errors for an error response body.
func (e Errors) Details() map[string]any {
	fields := make([]map[string]string, 0, len(e))
	for _, fe := range e {
		fields = append(fields, map[string]string{"field": fe.Field, "message": fe.Message})
	}
	return map[string]any{"fields": fields}
}

// Length reports whether s has between min and max runes.
func Length(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// Email accepts a bare address (no display name) of at most 254 characters.
func Email(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	if addr.Name != "" || addr.Address != s {
		return false
	}
	domain := s[strings.LastIndex(s, "@")+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

// StrongPassword returns the first unmet rule for a new admin password, or
// "" when password is acceptable.
func StrongPassword(password string) string {
	switch n := utf8.RuneCountInString(password); {
	case n < 8:
		return "Password must be at least 8 characters"
	case n > 128:
		return "Password too long"
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	switch {
	case !upper:
		return "Password must contain an uppercase letter"
	case !lower:
		return "Password must contain a lowercase letter"
	case !digit:
		return "Password must contain a number"
	case !special:
		return "Password must contain a special character"
	}
	return ""
}
