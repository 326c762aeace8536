package contact

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/storage/memory"
)

func setup(t *testing.T, opts Options) (*plugin.Registry, *memory.Store) {
	t.Helper()
	store := memory.New()
	reg := plugin.NewRegistry(plugin.Services{Store: store})
	require.NoError(t, New(opts).Register(reg))
	return reg, store
}

func serve(t *testing.T, reg *plugin.Registry, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	for _, ep := range reg.Endpoints() {
		if ep.Method == req.Method && ep.Path == req.URL.Path {
			rec := httptest.NewRecorder()
			ep.Handler(rec, req)
			return rec
		}
	}
	t.Fatalf("no endpoint for %s %s", req.Method, req.URL.Path)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegisterEndpoints(t *testing.T) {
	reg, _ := setup(t, Options{})
	eps := reg.Endpoints()
	require.Len(t, eps, 2)

	assert.Equal(t, "contact", eps[0].Operation)
	assert.Equal(t, "strict", eps[0].Tier)
	assert.False(t, eps[0].Protected)

	assert.Equal(t, "admin-contact", eps[1].Operation)
	assert.Equal(t, "admin", eps[1].Tier)
	assert.True(t, eps[1].Protected)
}

func TestSubmitStoresSanitizedMessage(t *testing.T) {
	reg, store := setup(t, Options{})

	body := `{"name":"  Ada\u0000 Lovelace ","phone":"+1 555-0100 ext","email":" ADA@Example.com ","inquiryType":"wholesale","message":"Hello, I would like a quote please."}`
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := serve(t, reg, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Message received. We will contact you soon.", out["message"])

	msgs, err := store.ListContactMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Ada Lovelace", msgs[0].Name)
	assert.Equal(t, "ada@example.com", msgs[0].Email)
	assert.Equal(t, "+1 555-0100", msgs[0].Phone)
	assert.Equal(t, "203.0.113.9", msgs[0].IPAddress)
}

func TestSubmitValidation(t *testing.T) {
	reg, store := setup(t, Options{})

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{"missing name", `{"name":"","email":"a@b.co","inquiryType":"x","message":"long enough message"}`, "Name is required"},
		{"bad email", `{"name":"A","email":"nope","inquiryType":"x","message":"long enough message"}`, "Invalid email address"},
		{"short message", `{"name":"A","email":"a@b.co","inquiryType":"x","message":"short"}`, "Message must be between 10 and 5000 characters"},
		{"long phone", `{"name":"A","phone":"123456789012345678901","email":"a@b.co","inquiryType":"x","message":"long enough message"}`, "Phone number too long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(tc.body))
			rec := serve(t, reg, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, "VALIDATION_FAILED", out["code"])
			assert.Equal(t, tc.message, out["message"])
		})
	}

	msgs, err := store.ListContactMessages(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	reg, _ := setup(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":`))
	rec := serve(t, reg, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode(t, rec)["code"])
}

func TestListAppliesLimit(t *testing.T) {
	reg, _ := setup(t, Options{ListLimit: 1, MaxListLimit: 2})

	for i := 0; i < 3; i++ {
		body := `{"name":"A","email":"a@b.co","inquiryType":"x","message":"long enough message"}`
		rec := serve(t, reg, httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body)))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	for target, want := range map[string]int{
		"/admin/contact-messages":          1,
		"/admin/contact-messages?limit=50": 2,
		"/admin/contact-messages?limit=x":  1,
	} {
		rec := serve(t, reg, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		msgs, _ := decode(t, rec)["messages"].([]any)
		assert.Len(t, msgs, want, target)
	}
}
