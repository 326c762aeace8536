package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/storage/memory"
)

const testSecret = "01234567890123456789012345678901"

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func quietOptions() Options {
	return Options{
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		LookupEnv: noEnv,
	}
}

func TestNewServerFromFileMemory(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "regime.yaml")

	config := strings.TrimSpace(`appName: "Bootstrap Test"
basePath: "/api"
secret: "01234567890123456789012345678901"
plugins:
  newsletter:
    enabled: false
`) + "\n"

	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	srv, cleanup, err := NewServerFromFile(path, quietOptions())
	if err != nil {
		t.Fatalf("new server from file: %v", err)
	}
	defer cleanup()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ok", nil)
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	recPlugin := httptest.NewRecorder()
	reqPlugin := httptest.NewRequest(http.MethodGet, "/api/testimonials?productId=3f2c1a9e-8b7d-4e6f-9a0b-1c2d3e4f5a6b", nil)
	srv.Handler().ServeHTTP(recPlugin, reqPlugin)
	if recPlugin.Code != http.StatusOK {
		t.Fatalf("expected 200 plugin route, got %d body=%s", recPlugin.Code, recPlugin.Body.String())
	}
	assert.Equal(t, "100", recPlugin.Header().Get("X-RateLimit-Limit"))

	recProducts := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recProducts, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.Equal(t, http.StatusOK, recProducts.Code)

	recOrders := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recOrders, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, recOrders.Code, "order listing sits behind the admin gate")

	recDisabled := httptest.NewRecorder()
	srv.Handler().ServeHTTP(recDisabled, httptest.NewRequest(http.MethodPost, "/api/newsletter", strings.NewReader(`{}`)))
	if recDisabled.Code != http.StatusNotFound {
		t.Fatalf("expected disabled plugin to be absent, got %d", recDisabled.Code)
	}
}

func TestNewServerFromFileSQLiteAutoMigrate(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "regime-sqlite.yaml")
	dbPath := filepath.Join(tmp, "regime.db")

	hash, err := session.HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)

	config := strings.TrimSpace(`appName: "Bootstrap SQLite Test"
secret: "01234567890123456789012345678901"
database:
  dialect: "sqlite"
  dsn: "`+dbPath+`"
  autoMigrate: true
admin:
  email: "owner@regime.test"
  passwordHash: "`+hash+`"
`) + "\n"
	if err := os.WriteFile(cfgPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	srv, cleanup, err := NewServerFromFile(cfgPath, quietOptions())
	if err != nil {
		t.Fatalf("new sqlite server from file: %v", err)
	}
	defer cleanup()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	login := httptest.NewRecorder()
	srv.Handler().ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/api/admin/login",
		strings.NewReader(`{"email":"owner@regime.test","password":"Str0ng!Passw0rd"}`)))
	if login.Code != http.StatusOK {
		t.Fatalf("expected seeded admin to log in, got %d body=%s", login.Code, login.Body.String())
	}
	require.NotEmpty(t, login.Result().Cookies())
	assert.True(t, login.Result().Cookies()[0].Secure, "production cookies should be Secure")
}

func TestSQLiteWithoutMigrationIsRejected(t *testing.T) {
	cfg := FileConfig{
		Secret:   testSecret,
		Database: &DatabaseConfig{Dialect: "sqlite", DSN: filepath.Join(t.TempDir(), "empty.db")},
	}
	_, _, err := NewServer(cfg, quietOptions())
	if err == nil || !strings.Contains(err.Error(), "regime migrate") {
		t.Fatalf("expected migration error, got %v", err)
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	_, _, err := NewServer(FileConfig{}, quietOptions())
	if !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}

	_, _, err = NewServer(FileConfig{Environment: "staging"}, quietOptions())
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, _, err = NewServer(FileConfig{Secret: "short"}, quietOptions())
	assert.Error(t, err)
}

func TestDevelopmentGeneratesSecretWithoutLoggingIt(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	cfg := FileConfig{Environment: "development"}
	require.NoError(t, ResolveSecret(&cfg, logger))
	assert.GreaterOrEqual(t, len(cfg.Secret), session.MinSecretLength)
	assert.Contains(t, logs.String(), "random secret")
	assert.NotContains(t, logs.String(), cfg.Secret)

	other := FileConfig{Environment: "dev"}
	require.NoError(t, ResolveSecret(&other, logger))
	assert.NotEqual(t, cfg.Secret, other.Secret)
}

func TestApplyEnv(t *testing.T) {
	cfg := FileConfig{Secret: "from-file"}
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"ADMIN_SESSION_SECRET": "legacy-name-secret-000000000000000",
		"SESSION_SECRET":       "preferred-secret-00000000000000000",
		"REGIME_ENV":           "development",
		"DATABASE_URL":         "sqlite://data/regime.db",
		"REDIS_ADDR":           "redis:6379",
		"REDIS_DB":             "2",
		"ADMIN_EMAIL":          "owner@regime.test",
		"ADMIN_PASSWORD_HASH":  "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "preferred-secret-00000000000000000", cfg.Secret)
	assert.Equal(t, EnvDevelopment, cfg.environment())
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, "data/regime.db", cfg.Database.DSN)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, "redis:6379", cfg.RateLimit.Redis.Addr)
	assert.Equal(t, 2, cfg.RateLimit.Redis.DB)
	assert.Equal(t, "owner@regime.test", cfg.Admin.Email)
	assert.Empty(t, cfg.Admin.PasswordHash)

	assert.Error(t, ApplyEnv(&FileConfig{}, envMap(map[string]string{"REDIS_DB": "two"})))
	assert.Error(t, ApplyEnv(&FileConfig{}, envMap(map[string]string{"DATABASE_URL": "oracle://x"})))
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	logger := quietOptions().Logger
	store := memory.New()

	err := SeedAdmin(ctx, store, AdminConfig{Email: "owner@regime.test", PasswordHash: "Str0ng!Passw0rd"}, logger)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Str0ng!Passw0rd")

	require.Error(t, SeedAdmin(ctx, store, AdminConfig{Email: "owner@regime.test"}, logger))
	require.NoError(t, SeedAdmin(ctx, store, AdminConfig{}, logger))

	first, err := session.HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)
	second, err := session.HashPassword("Different!Pass1")
	require.NoError(t, err)

	require.NoError(t, SeedAdmin(ctx, store, AdminConfig{Email: "Owner@Regime.test", PasswordHash: first}, logger))
	require.NoError(t, SeedAdmin(ctx, store, AdminConfig{Email: "owner@regime.test", PasswordHash: second}, logger))

	cred, err := store.FindAdminCredentialByEmail(ctx, "owner@regime.test")
	require.NoError(t, err)
	assert.Equal(t, first, cred.PasswordHash)

	_, err = store.FindAdminCredentialByEmail(ctx, "nobody@regime.test")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBuildTiers(t *testing.T) {
	tiers, err := buildTiers(map[string]TierConfig{
		"Strict": {Max: 10},
		"burst":  {Window: "10s", Max: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Rule{Window: time.Minute, Max: 10}, tiers[ratelimit.TierStrict])
	assert.Equal(t, ratelimit.Rule{Window: 10 * time.Second, Max: 3}, tiers["burst"])

	_, err = buildTiers(map[string]TierConfig{"strict": {Window: "soon"}})
	assert.Error(t, err)
}

func TestInvalidDurationsAreRejected(t *testing.T) {
	cases := []FileConfig{
		{Secret: testSecret, Session: SessionConfig{TTL: "12 hours"}},
		{Secret: testSecret, Session: SessionConfig{TTL: "-1h"}},
		{Secret: testSecret, RateLimit: RateLimitConfig{SweepInterval: "soon"}},
	}
	for _, cfg := range cases {
		_, _, err := BuildAuthConfig(cfg, quietOptions())
		assert.Error(t, err, "%+v", cfg)
	}

	ac, cleanup, err := BuildAuthConfig(FileConfig{Secret: testSecret, Session: SessionConfig{TTL: "12h"}}, quietOptions())
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, 12*time.Hour, ac.Session.TTL)
	assert.Equal(t, ratelimit.DefaultSweepInterval, ac.RateLimit.SweepInterval)
}

func TestBuildLimiterStore(t *testing.T) {
	store, closeFn, err := buildLimiterStore(RateLimitConfig{})
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryStore{}, store)
	assert.NoError(t, closeFn())

	_, _, err = buildLimiterStore(RateLimitConfig{Store: "memcached"})
	assert.Error(t, err)

	_, _, err = buildLimiterStore(RateLimitConfig{Store: "redis"})
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "REGIME_BOOTSTRAP_DOTENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=loaded\n"), 0o600))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv(key))
}
