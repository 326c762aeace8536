// Package bootstrap turns a YAML file plus environment overrides into a
// running auth.Server with its stores.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/SnowzyTech/regime/auth"
	"github.com/SnowzyTech/regime/migrations"
	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/plugins"
	"github.com/SnowzyTech/regime/plugins/contact"
	"github.com/SnowzyTech/regime/plugins/orders"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/storage/memory"
	"github.com/SnowzyTech/regime/storage/sqlstore"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// ErrMissingSecret is returned when no session secret is configured in
// production.
var ErrMissingSecret = errors.New("session secret is required in production: set SESSION_SECRET")

type FileConfig struct {
	AppName        string   `yaml:"appName"`
	BasePath       string   `yaml:"basePath"`
	Environment    string   `yaml:"environment"`
	Secret         string   `yaml:"secret"`
	TrustedOrigins []string `yaml:"trustedOrigins"`

	Database  *DatabaseConfig `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Admin     AdminConfig     `yaml:"admin"`
	Plugins   PluginConfig    `yaml:"plugins"`
}

type DatabaseConfig struct {
	Dialect     string `yaml:"dialect"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

type SessionConfig struct {
	CookieName    string `yaml:"cookieName"`
	TTL           string `yaml:"ttl"`
	SecureCookies *bool  `yaml:"secureCookies"`
}

type RateLimitConfig struct {
	Enabled       *bool                 `yaml:"enabled"`
	Store         string                `yaml:"store"`
	Redis         RedisConfig           `yaml:"redis"`
	SweepInterval string                `yaml:"sweepInterval"`
	Tiers         map[string]TierConfig `yaml:"tiers"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type TierConfig struct {
	Window string `yaml:"window"`
	Max    int    `yaml:"max"`
}

// AdminConfig seeds one admin credential at startup. PasswordHash must be
// produced by `regime hash-password`; plaintext is refused.
type AdminConfig struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"passwordHash"`
}

type PluginConfig struct {
	Contact      ContactPluginConfig `yaml:"contact"`
	Newsletter   TogglePluginConfig  `yaml:"newsletter"`
	Testimonials TogglePluginConfig  `yaml:"testimonials"`
	Products     TogglePluginConfig  `yaml:"products"`
	Orders       TogglePluginConfig  `yaml:"orders"`
}

type TogglePluginConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type ContactPluginConfig struct {
	Enabled      *bool `yaml:"enabled"`
	ListLimit    int   `yaml:"listLimit"`
	MaxListLimit int   `yaml:"maxListLimit"`
}

// Options carries process-level dependencies that do not belong in the file.
type Options struct {
	Logger            *slog.Logger
	MetricsRegisterer prometheus.Registerer
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.LookupEnv == nil {
		o.LookupEnv = os.LookupEnv
	}
	return o
}

func LoadFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads each existing file into the process environment. Missing
// files are skipped and variables already set are left alone.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg.
func ApplyEnv(cfg *FileConfig, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ADMIN_SESSION_SECRET"); ok {
		cfg.Secret = v
	}
	if v, ok := get("SESSION_SECRET"); ok {
		cfg.Secret = v
	}
	if v, ok := get("REGIME_ENV"); ok {
		cfg.Environment = v
	}
	if v, ok := get("DATABASE_URL"); ok {
		dialect, dsn, err := migrations.ParseDatabaseURL(v)
		if err != nil {
			return fmt.Errorf("DATABASE_URL: %w", err)
		}
		if cfg.Database == nil {
			cfg.Database = &DatabaseConfig{}
		}
		cfg.Database.Dialect = dialect.String()
		cfg.Database.DSN = dsn
	}
	if v, ok := get("REDIS_ADDR"); ok {
		cfg.RateLimit.Store = "redis"
		cfg.RateLimit.Redis.Addr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		cfg.RateLimit.Redis.Password = v
	}
	if v, ok := get("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RateLimit.Redis.DB = db
	}
	if v, ok := get("ADMIN_EMAIL"); ok {
		cfg.Admin.Email = v
	}
	if v, ok := get("ADMIN_PASSWORD_HASH"); ok {
		cfg.Admin.PasswordHash = v
	}
	return nil
}

// environment returns the normalized environment name. Anything other than
// development is treated as production.
func (c FileConfig) environment() string {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case EnvDevelopment, "dev", "local":
		return EnvDevelopment
	default:
		return EnvProduction
	}
}

// ResolveSecret enforces the secret policy. Production refuses to start
// without a secret; development gets a random per-process secret.
func ResolveSecret(cfg *FileConfig, logger *slog.Logger) error {
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if cfg.Secret != "" {
		if len(cfg.Secret) < session.MinSecretLength {
			return fmt.Errorf("session secret must be at least %d characters", session.MinSecretLength)
		}
		return nil
	}
	if cfg.environment() == EnvProduction {
		return ErrMissingSecret
	}

	secret, err := session.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generate development secret: %w", err)
	}
	cfg.Secret = secret
	logger.Warn("no session secret configured; using a random secret for this process, admin sessions end on restart",
		"environment", EnvDevelopment)
	return nil
}

func BuildAuthConfig(cfg FileConfig, opts Options) (auth.Config, func() error, error) {
	opts = opts.withDefaults()

	ttl, err := parseDuration("session.ttl", cfg.Session.TTL, session.DefaultTTL)
	if err != nil {
		return auth.Config{}, nil, err
	}
	sweepInterval, err := parseDuration("rateLimit.sweepInterval", cfg.RateLimit.SweepInterval, ratelimit.DefaultSweepInterval)
	if err != nil {
		return auth.Config{}, nil, err
	}

	primary, closeDB, err := buildPrimaryStore(cfg.Database)
	if err != nil {
		return auth.Config{}, nil, err
	}

	limiterStore, closeLimiter, err := buildLimiterStore(cfg.RateLimit)
	if err != nil {
		_ = closeDB()
		return auth.Config{}, nil, err
	}
	cleanup := func() error {
		return errors.Join(closeLimiter(), closeDB())
	}

	tiers, err := buildTiers(cfg.RateLimit.Tiers)
	if err != nil {
		_ = cleanup()
		return auth.Config{}, nil, err
	}

	// Cookies are Secure unless development turns them off or the file says
	// otherwise.
	secure := cfg.environment() == EnvProduction
	if cfg.Session.SecureCookies != nil {
		secure = *cfg.Session.SecureCookies
	}

	ac := auth.Config{
		AppName:        strings.TrimSpace(cfg.AppName),
		BasePath:       strings.TrimSpace(cfg.BasePath),
		Secret:         strings.TrimSpace(cfg.Secret),
		TrustedOrigins: cfg.TrustedOrigins,
		Logger:         opts.Logger,
		Session: auth.SessionConfig{
			CookieName:    cfg.Session.CookieName,
			TTL:           ttl,
			SecureCookies: secure,
		},
		RateLimit: auth.RateLimitConfig{
			Enabled:       enabled(cfg.RateLimit.Enabled),
			Store:         limiterStore,
			Tiers:         tiers,
			SweepInterval: sweepInterval,
		},
		MetricsRegisterer: opts.MetricsRegisterer,
		PrimaryStore:      primary,
		Plugins:           buildPlugins(cfg.Plugins),
	}

	return ac, cleanup, nil
}

// NewServerFromFile builds a server from the YAML file at path (optional)
// and the environment. The returned cleanup closes the stores.
func NewServerFromFile(path string, opts Options) (*auth.Server, func() error, error) {
	opts = opts.withDefaults()

	var fileCfg FileConfig
	if strings.TrimSpace(path) != "" {
		var err error
		if fileCfg, err = LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	return NewServer(fileCfg, opts)
}

func NewServer(fileCfg FileConfig, opts Options) (*auth.Server, func() error, error) {
	opts = opts.withDefaults()

	if err := ApplyEnv(&fileCfg, opts.LookupEnv); err != nil {
		return nil, nil, err
	}
	if err := ResolveSecret(&fileCfg, opts.Logger); err != nil {
		return nil, nil, err
	}

	cfg, cleanup, err := BuildAuthConfig(fileCfg, opts)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := SeedAdmin(ctx, cfg.PrimaryStore, fileCfg.Admin, opts.Logger); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	srv, err := auth.New(cfg)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

// SeedAdmin creates the configured admin credential when it does not exist
// yet. An existing credential is never overwritten.
func SeedAdmin(ctx context.Context, store storage.Primary, admin AdminConfig, logger *slog.Logger) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	hash := strings.TrimSpace(admin.PasswordHash)
	if email == "" && hash == "" {
		return nil
	}
	if email == "" || hash == "" {
		return errors.New("admin seed requires both email and passwordHash")
	}
	if !session.IsEncodedHash(hash) {
		return errors.New("admin passwordHash is not a password hash; generate one with `regime hash-password`")
	}

	_, err := store.FindAdminCredentialByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("look up admin credential: %w", err)
	}

	_, err = store.CreateAdminCredential(ctx, storage.CreateAdminCredentialParams{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("seed admin credential: %w", err)
	}
	logger.Info("seeded admin credential", "email", email)
	return nil
}

func buildPrimaryStore(cfg *DatabaseConfig) (storage.Primary, func() error, error) {
	if cfg == nil {
		return memory.New(), func() error { return nil }, nil
	}
	dialect, err := migrations.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, nil, err
	}
	driverName, err := migrations.DriverName(dialect)
	if err != nil {
		return nil, nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil, fmt.Errorf("database dsn is required")
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	if dialect == migrations.DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err := migrations.Apply(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	} else {
		pending, err := migrations.NeedsMigration(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if pending {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database schema is not at version %s; run `regime migrate` or set autoMigrate", migrations.CurrentVersion)
		}
	}

	var store storage.Primary
	switch dialect {
	case migrations.DialectPostgres:
		store = sqlstore.NewPostgres(db)
	case migrations.DialectMySQL:
		store = sqlstore.NewMySQL(db)
	case migrations.DialectSQLite:
		store = sqlstore.NewSQLite(db)
	default:
		_ = db.Close()
		return nil, nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	return store, db.Close, nil
}

func buildLimiterStore(cfg RateLimitConfig) (ratelimit.Store, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "memory":
		return ratelimit.NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		store, err := ratelimit.NewRedisStore(ratelimit.RedisConfig{
			Addr:      strings.TrimSpace(cfg.Redis.Addr),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported rate limit store %q", cfg.Store)
	}
}

func buildTiers(in map[string]TierConfig) (map[string]ratelimit.Rule, error) {
	if len(in) == 0 {
		return nil, nil
	}
	defaults := ratelimit.DefaultTiers()
	out := make(map[string]ratelimit.Rule, len(in))
	for name, tc := range in {
		key := strings.ToLower(strings.TrimSpace(name))
		rule, known := defaults[key]
		if !known {
			rule = ratelimit.Rule{Window: time.Minute}
		}
		if strings.TrimSpace(tc.Window) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(tc.Window))
			if err != nil {
				return nil, fmt.Errorf("rate limit tier %q window: %w", name, err)
			}
			rule.Window = d
		}
		if tc.Max != 0 {
			rule.Max = tc.Max
		}
		out[key] = rule
	}
	return out, nil
}

func buildPlugins(cfg PluginConfig) []plugin.Plugin {
	result := []plugin.Plugin{}
	if enabled(cfg.Contact.Enabled) {
		result = append(result, plugins.Contact(contact.Options{
			ListLimit:    cfg.Contact.ListLimit,
			MaxListLimit: cfg.Contact.MaxListLimit,
		}))
	}
	if enabled(cfg.Newsletter.Enabled) {
		result = append(result, plugins.Newsletter())
	}
	if enabled(cfg.Testimonials.Enabled) {
		result = append(result, plugins.Testimonials())
	}
	if enabled(cfg.Products.Enabled) {
		result = append(result, plugins.Products())
	}
	if enabled(cfg.Orders.Enabled) {
		result = append(result, plugins.Orders(orders.Options{}))
	}
	return result
}

func enabled(v *bool) bool {
	return v == nil || *v
}

// parseDuration returns fallback only for an empty value; anything else must
// parse as a positive duration.
func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", field, trimmed)
	}
	return d, nil
}
