package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/plugins/contact"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/storage/memory"
)

const testSecret = "01234567890123456789012345678901"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	cfg := Config{
		Secret:       testSecret,
		PrimaryStore: store,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s, store
}

func seedAdmin(t *testing.T, store storage.Primary, email, password string) {
	t.Helper()
	hash, err := session.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := store.CreateAdminCredential(context.Background(), storage.CreateAdminCredentialParams{
		Email:        email,
		PasswordHash: hash,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func login(t *testing.T, h http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body)))
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			return c
		}
	}
	t.Fatalf("expected %s cookie to be set", DefaultCookieName)
	return nil
}

func getSession(h http.Handler, cookie *http.Cookie) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/session", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v body=%s", err, rec.Body.String())
	}
	return resp.Message
}

func TestAdminLoginFlow(t *testing.T) {
	s, store := newTestServer(t, nil)
	seedAdmin(t, store, "owner@regime.test", "Str0ng!Passw0rd")
	h := s.Handler()

	rec := login(t, h, "Owner@Regime.test", "Str0ng!Passw0rd")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)
	assert.NotContains(t, rec.Body.String(), cookie.Value)

	recSession := getSession(h, cookie)
	if recSession.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", recSession.Code, recSession.Body.String())
	}
	assert.JSONEq(t, `{"admin":{"email":"owner@regime.test","role":"ADMIN"}}`, recSession.Body.String())

	recOut := httptest.NewRecorder()
	reqOut := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	reqOut.AddCookie(cookie)
	h.ServeHTTP(recOut, reqOut)
	if recOut.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", recOut.Code, recOut.Body.String())
	}
	cleared := sessionCookie(t, recOut)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	recAnon := getSession(h, nil)
	if recAnon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recAnon.Code)
	}
	assert.Equal(t, ReasonNoSession, errorMessage(t, recAnon))
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	s, store := newTestServer(t, nil)
	seedAdmin(t, store, "owner@regime.test", "Str0ng!Passw0rd")
	h := s.Handler()

	for _, tc := range []struct{ email, password string }{
		{"owner@regime.test", "wrong-password"},
		{"nobody@regime.test", "Str0ng!Passw0rd"},
	} {
		rec := login(t, h, tc.email, tc.password)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.email, rec.Code)
		}
		assert.Equal(t, "Invalid admin credentials", errorMessage(t, rec))
		assert.Empty(t, rec.Result().Cookies())
	}

	rec := login(t, h, "not-an-email", "x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	assert.Equal(t, "Invalid email address", errorMessage(t, rec))
}

func TestProtectedRouteRejectsNonAdminRole(t *testing.T) {
	s, _ := newTestServer(t, nil)

	signer, err := session.NewSigner(testSecret)
	require.NoError(t, err)
	token, err := signer.Sign(session.AdminSession{Email: "user@regime.test", Role: "USER"}, time.Hour)
	require.NoError(t, err)

	rec := getSession(s.Handler(), &http.Cookie{Name: DefaultCookieName, Value: token})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	assert.Equal(t, ReasonInsufficientRole, errorMessage(t, rec))
}

func TestProtectedRouteRejectsExpiredSession(t *testing.T) {
	clock := newFakeClock()
	s, store := newTestServer(t, func(c *Config) {
		c.Now = clock.Now
		c.Session.TTL = time.Hour
	})
	seedAdmin(t, store, "owner@regime.test", "Str0ng!Passw0rd")
	h := s.Handler()

	cookie := sessionCookie(t, login(t, h, "owner@regime.test", "Str0ng!Passw0rd"))
	assert.Equal(t, 3600, cookie.MaxAge)

	clock.Advance(time.Hour)
	if rec := getSession(h, cookie); rec.Code != http.StatusOK {
		t.Fatalf("expected session to be valid at its expiry instant, got %d", rec.Code)
	}

	clock.Advance(time.Millisecond)
	rec := getSession(h, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	assert.Equal(t, ReasonInvalidSession, errorMessage(t, rec))
}

func TestCreateCredential(t *testing.T) {
	s, store := newTestServer(t, nil)
	seedAdmin(t, store, "owner@regime.test", "Str0ng!Passw0rd")
	h := s.Handler()
	cookie := sessionCookie(t, login(t, h, "owner@regime.test", "Str0ng!Passw0rd"))

	post := func(body string, withCookie bool) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/admin/credentials", strings.NewReader(body))
		if withCookie {
			req.AddCookie(cookie)
		}
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(`{"email":"second@regime.test","password":"An0ther!Pass"}`, false); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", rec.Code)
	}

	weak := post(`{"email":"second@regime.test","password":"alllowercase1!"}`, true)
	if weak.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", weak.Code)
	}
	assert.Equal(t, "Password must contain an uppercase letter", errorMessage(t, weak))

	created := post(`{"email":"Second@Regime.test","password":"An0ther!Pass"}`, true)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", created.Code, created.Body.String())
	}
	assert.NotContains(t, created.Body.String(), "An0ther!Pass")

	dup := post(`{"email":"second@regime.test","password":"An0ther!Pass"}`, true)
	if dup.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", dup.Code)
	}
	assert.Equal(t, "Admin credential already exists", errorMessage(t, dup))

	cred, err := store.FindAdminCredentialByEmail(context.Background(), "second@regime.test")
	require.NoError(t, err)
	assert.True(t, strings.Count(cred.PasswordHash, ":") == 2, "stored hash should use the salt:iterations:key format")

	if rec := login(t, h, "second@regime.test", "An0ther!Pass"); rec.Code != http.StatusOK {
		t.Fatalf("expected new admin to log in, got %d", rec.Code)
	}
}

func TestStrictTierOverHTTP(t *testing.T) {
	clock := newFakeClock()
	s, _ := newTestServer(t, func(c *Config) {
		c.Now = clock.Now
		c.RateLimit = RateLimitConfig{Enabled: true, Store: ratelimit.NewMemoryStore()}
		c.Plugins = []plugin.Plugin{contact.New(contact.Options{})}
	})
	h := s.Handler()

	submit := func(ip string) *httptest.ResponseRecorder {
		body := `{"name":"Ada","email":"ada@example.com","inquiryType":"general","message":"Is this available in size M?"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
		req.Header.Set("X-Forwarded-For", ip)
		h.ServeHTTP(rec, req)
		return rec
	}

	start := clock.Now()
	for i := 1; i <= 5; i++ {
		rec := submit("1.2.3.4")
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d body=%s", i, rec.Code, rec.Body.String())
		}
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"4", "3", "2", "1", "0"}[i-1], rec.Header().Get("X-RateLimit-Remaining"))
		clock.Advance(10 * time.Millisecond)
	}

	rec := submit("1.2.3.4")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, start.Add(time.Minute).Unix(), mustParseInt(t, rec.Header().Get("X-RateLimit-Reset")))
	assert.Equal(t, "Too many requests. Please try again in 60 seconds.", errorMessage(t, rec))

	if other := submit("5.6.7.8"); other.Code != http.StatusOK {
		t.Fatalf("expected another client to be unaffected, got %d", other.Code)
	}

	clock.Advance(time.Minute)
	if again := submit("1.2.3.4"); again.Code != http.StatusOK {
		t.Fatalf("expected a new window after reset, got %d", again.Code)
	}
}

func mustParseInt(t *testing.T, v string) int64 {
	t.Helper()
	var n int64
	if err := json.Unmarshal([]byte(v), &n); err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return n
}

type brokenStore struct {
	*ratelimit.MemoryStore
}

func (brokenStore) Get(context.Context, string) (ratelimit.Entry, bool, error) {
	return ratelimit.Entry{}, false, errors.New("connection refused")
}

func TestRateLimitStoreFailureFailsClosed(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, Store: brokenStore{ratelimit.NewMemoryStore()}}
	})
	rec := login(t, s.Handler(), "owner@regime.test", "x")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	// Unlimited routes keep working.
	ok := httptest.NewRecorder()
	s.Handler().ServeHTTP(ok, httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestRateLimitMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newTestServer(t, func(c *Config) {
		c.RateLimit.Enabled = true
		c.MetricsRegisterer = reg
	})
	login(t, s.Handler(), "owner@regime.test", "Str0ng!Passw0rd")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["regime_rate_limit_checks_total"])
}

func TestUntrustedOriginBlocked(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) {
		c.TrustedOrigins = []string{"https://shop.example.com"}
	})

	body := `{"email":"owner@regime.test","password":"Str0ng!Passw0rd"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body))
	req.Header.Set("Origin", "https://evil.example.com")
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestNewRequiresSecret(t *testing.T) {
	for _, secret := range []string{"", "   ", "too-short"} {
		_, err := New(Config{Secret: secret, PrimaryStore: memory.New()})
		if err == nil {
			t.Fatalf("expected error for secret %q", secret)
		}
	}
	if _, err := New(Config{Secret: testSecret}); err == nil {
		t.Fatalf("expected error without a primary store")
	}
}

func TestPluginConflictDetection(t *testing.T) {
	_, err := New(Config{
		Secret:       testSecret,
		PrimaryStore: memory.New(),
		Plugins: []plugin.Plugin{
			testPlugin{id: "p1"},
			testPlugin{id: "p2"},
		},
	})
	if err == nil {
		t.Fatalf("expected plugin route conflict error")
	}
}

func TestUnknownTierRejected(t *testing.T) {
	_, err := New(Config{
		Secret:       testSecret,
		PrimaryStore: memory.New(),
		Plugins:      []plugin.Plugin{testPlugin{id: "p1", tier: "bogus"}},
	})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown tier error, got %v", err)
	}
}

func TestOpenAPIEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload map[string]any
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&payload); err != nil {
		t.Fatalf("openapi should be valid json: %v", err)
	}

	paths, ok := payload["paths"].(map[string]any)
	if !ok {
		t.Fatalf("openapi missing paths")
	}
	login, ok := paths["/api/admin/login"].(map[string]any)
	if !ok {
		t.Fatalf("openapi missing admin login route")
	}
	post := login["post"].(map[string]any)
	assert.Equal(t, "strict", post["x-rate-limit-tier"])
	assert.Nil(t, post["security"])

	sess := paths["/api/admin/session"].(map[string]any)["get"].(map[string]any)
	assert.NotNil(t, sess["security"])
}

func TestStartBackgroundSweepsUntilCancelled(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	s, _ := newTestServer(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{Enabled: true, Store: store, SweepInterval: 5 * time.Millisecond}
	})
	require.NoError(t, store.Set(context.Background(), "contact:9.9.9.9", ratelimit.Entry{Count: 1, ResetAt: time.Now().Add(-time.Second)}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartBackground(ctx)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

type testPlugin struct {
	id   string
	tier string
}

func (p testPlugin) ID() string { return p.id }

func (p testPlugin) Register(r *plugin.Registry) error {
	return r.Handle(plugin.Endpoint{
		Method:    http.MethodGet,
		Path:      "/plugin-conflict",
		Operation: "plugin-conflict",
		Tier:      p.tier,
		Handler:   func(http.ResponseWriter, *http.Request) {},
	})
}
