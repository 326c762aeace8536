package plugutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com"}`))
	if err := DecodeJSON(httptest.NewRecorder(), req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "a@b.com" {
		t.Fatalf("unexpected email %q", body.Email)
	}

	for _, bad := range []string{``, `{`, `{"email":"a"} {"email":"b"}`, `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(bad))
		if err := DecodeJSON(httptest.NewRecorder(), req, &body); err == nil {
			t.Fatalf("expected error for body of length %d", len(bad))
		}
	}
}

func TestParsePositiveInt(t *testing.T) {
	if got := ParsePositiveInt(" 25 ", 10); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	for _, v := range []string{"", "-1", "0", "abc"} {
		if got := ParsePositiveInt(v, 10); got != 10 {
			t.Fatalf("expected fallback for %q, got %d", v, got)
		}
	}
}
