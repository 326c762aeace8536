// Package sanitize normalizes untrusted input before it reaches storage or
// gets interpolated into HTML. Every function is total: malformed input
// degrades to an empty value, a default, or a false ok flag.
package sanitize

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	DefaultMaxLength = 10000
	MaxEmailLength   = 254
	MaxPhoneLength   = 20

	// MaxSafeInteger bounds numbers that survive a round trip through a
	// float64 without losing integer precision.
	MaxSafeInteger = 1<<53 - 1
	MinSafeInteger = -MaxSafeInteger
)

type stringOptions struct {
	maxLength  int
	singleLine bool
}

type StringOption func(*stringOptions)

// MaxLength bounds the result to n runes. Non-positive values keep the default.
func MaxLength(n int) StringOption {
	return func(o *stringOptions) {
		if n > 0 {
			o.maxLength = n
		}
	}
}

// SingleLine replaces carriage returns and line feeds with spaces.
func SingleLine() StringOption {
	return func(o *stringOptions) {
		o.singleLine = true
	}
}

// String strips NUL and control characters (tabs and newlines survive unless
// SingleLine is given), trims surrounding whitespace and truncates the result.
func String(input string, opts ...StringOption) string {
	o := stringOptions{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(&o)
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\r' || r == '\n':
			if o.singleLine {
				b.WriteByte(' ')
			} else {
				b.WriteRune(r)
			}
		case r == '\t':
			b.WriteRune(r)
		case isStrippedControl(r):
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	out = truncateRunes(out, o.maxLength)
	return strings.TrimRightFunc(out, unicode.IsSpace)
}

func isStrippedControl(r rune) bool {
	return r <= 0x1F || r == 0x7F
}

// Email lowercases and trims the address, bounds it to the RFC 5321 length
// and removes angle brackets. Format validation is the caller's job.
func Email(input string) string {
	out := strings.ToLower(strings.TrimSpace(input))
	out = truncateRunes(out, MaxEmailLength)
	return strings.NewReplacer("<", "", ">", "").Replace(out)
}

// Phone keeps digits, whitespace and the separators + - ( ) .
func Phone(input string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.':
			return r
		case unicode.IsSpace(r):
			return r
		}
		return -1
	}, input)
	out = truncateRunes(strings.TrimSpace(out), MaxPhoneLength)
	return strings.TrimRightFunc(out, unicode.IsSpace)
}

// UUID returns the lowercased canonical form of a hyphenated 8-4-4-4-12
// identifier. ok is false for anything else, including the brace, URN and
// unhyphenated forms uuid.Parse would otherwise accept.
func UUID(input string) (string, bool) {
	candidate := strings.ToLower(strings.TrimSpace(input))
	if len(candidate) != 36 {
		return "", false
	}
	if _, err := uuid.Parse(candidate); err != nil {
		return "", false
	}
	return candidate, true
}

type numberOptions struct {
	min float64
	max float64
	def float64
}

type NumberOption func(*numberOptions)

func WithMin(v float64) NumberOption {
	return func(o *numberOptions) { o.min = v }
}

func WithMax(v float64) NumberOption {
	return func(o *numberOptions) { o.max = v }
}

func WithDefault(v float64) NumberOption {
	return func(o *numberOptions) { o.def = v }
}

// Number coerces value to a float64 and clamps it into [min, max]. Values that
// are not numeric, NaN or infinite yield the default instead. nil and blank
// strings count as 0; strings may use a 0x, 0o or 0b integer prefix.
func Number(value any, opts ...NumberOption) float64 {
	o := numberOptions{min: MinSafeInteger, max: MaxSafeInteger}
	for _, opt := range opts {
		opt(&o)
	}

	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return o.def
	}
	return math.Max(o.min, math.Min(o.max, n))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return parseNumeric(strings.TrimSpace(v))
	}
	return 0, false
}

// parseNumeric accepts decimal literals and unsigned 0x/0o/0b integers.
// Underscore separators and hex floats are rejected.
func parseNumeric(s string) (float64, bool) {
	if s == "" {
		return 0, true
	}
	if strings.Contains(s, "_") {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	if strings.ContainsAny(s, "xXpP") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

var blockedSchemes = map[string]struct{}{
	"javascript": {},
	"data":       {},
}

// URL parses input as an absolute URL and returns its normalized form when
// the scheme is allowed. allowedSchemes defaults to http and https; entries
// may be written with or without the trailing colon.
func URL(input string, allowedSchemes ...string) (string, bool) {
	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"http", "https"}
	}

	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil || u.Scheme == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if _, blocked := blockedSchemes[scheme]; blocked {
		return "", false
	}

	allowed := false
	for _, s := range allowedSchemes {
		if strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":") == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", false
	}
	if (scheme == "http" || scheme == "https") && u.Host == "" {
		return "", false
	}

	u.Scheme = scheme
	return u.String(), true
}

// Object returns a copy of obj with String applied to every string value,
// descending into nested maps and slices.
func Object(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		return Object(t)
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = value(item)
		}
		return items
	case []string:
		items := make([]string, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return items
	}
	return v
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// EscapeHTML escapes the characters that are significant in HTML attribute,
// element and inline script contexts.
func EscapeHTML(s string) string {
	return htmlReplacer.Replace(s)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
