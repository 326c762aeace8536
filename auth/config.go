package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/storage"
)

const (
	DefaultAppName    = "regime"
	DefaultBasePath   = "/api"
	DefaultCookieName = "admin_session"
)

type Config struct {
	AppName        string
	BasePath       string
	Secret         string
	TrustedOrigins []string

	// Logger receives request and security events. It never sees secrets,
	// tokens or passwords.
	Logger *slog.Logger
	// Now is the clock shared by the signer and the limiter. Defaults to
	// time.Now.
	Now func() time.Time

	Session   SessionConfig
	RateLimit RateLimitConfig

	// MetricsRegisterer, when set, receives the limiter collectors.
	MetricsRegisterer prometheus.Registerer

	PrimaryStore storage.Primary
	Plugins      []plugin.Plugin
}

type SessionConfig struct {
	CookieName    string
	TTL           time.Duration
	SecureCookies bool
}

type RateLimitConfig struct {
	Enabled bool
	// Store defaults to a process-local ratelimit.MemoryStore.
	Store ratelimit.Store
	// Tiers overrides individual entries of ratelimit.DefaultTiers.
	Tiers         map[string]ratelimit.Rule
	SweepInterval time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if strings.TrimSpace(out.AppName) == "" {
		out.AppName = DefaultAppName
	}
	if strings.TrimSpace(out.BasePath) == "" {
		out.BasePath = DefaultBasePath
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Now == nil {
		out.Now = time.Now
	}

	if strings.TrimSpace(out.Session.CookieName) == "" {
		out.Session.CookieName = DefaultCookieName
	}
	if out.Session.TTL == 0 {
		out.Session.TTL = session.DefaultTTL
	}

	tiers := ratelimit.DefaultTiers()
	for name, rule := range out.RateLimit.Tiers {
		tiers[strings.ToLower(strings.TrimSpace(name))] = rule
	}
	out.RateLimit.Tiers = tiers
	if out.RateLimit.SweepInterval == 0 {
		out.RateLimit.SweepInterval = ratelimit.DefaultSweepInterval
	}

	out.BasePath = cleanPath(out.BasePath)
	if out.BasePath == "" {
		out.BasePath = DefaultBasePath
	}

	origins := make([]string, 0, len(out.TrustedOrigins))
	for _, o := range out.TrustedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	out.TrustedOrigins = origins

	return out
}

func (c Config) validate() error {
	if c.PrimaryStore == nil {
		return errors.New("primary store is required")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("secret is required")
	}
	if len(c.Secret) < session.MinSecretLength {
		return fmt.Errorf("secret must be at least %d characters", session.MinSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.RateLimit.Enabled {
		for name, rule := range c.RateLimit.Tiers {
			if rule.Window <= 0 || rule.Max <= 0 {
				return fmt.Errorf("rate limit tier %q: %w", name, ratelimit.ErrInvalidRule)
			}
		}
	}
	return nil
}
