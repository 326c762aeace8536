// Package auth serves the storefront API: admin login, the admin gate and
// the plugin endpoints, each behind the origin policy and its rate limit tier.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SnowzyTech/regime/plugin"
	"github.com/SnowzyTech/regime/ratelimit"
	"github.com/SnowzyTech/regime/session"
)

type route struct {
	handler   http.Handler
	operation string
	rule      ratelimit.Rule
	limited   bool
}

type Server struct {
	cfg       Config
	log       *slog.Logger
	routes    map[string]map[string]route
	summaries map[string]map[string]routeDoc
	signer    *session.Signer
	gate      *Gate
	limiter   *ratelimit.Limiter
	openapi   []byte

	// dummyHash is checked for unknown emails so that both login failure
	// paths cost one key derivation.
	dummyHash string
}

func New(cfg Config) (*Server, error) {
	resolved := cfg.withDefaults()
	if err := resolved.validate(); err != nil {
		return nil, err
	}

	signer, err := session.NewSigner(resolved.Secret, session.WithClock(resolved.Now))
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       resolved,
		log:       resolved.Logger,
		routes:    map[string]map[string]route{},
		summaries: map[string]map[string]routeDoc{},
		signer:    signer,
		gate:      NewGate(signer, resolved.Session.CookieName, resolved.Logger),
	}

	if resolved.RateLimit.Enabled {
		opts := []ratelimit.Option{ratelimit.WithClock(resolved.Now)}
		if resolved.MetricsRegisterer != nil {
			m, err := ratelimit.NewMetrics(resolved.MetricsRegisterer)
			if err != nil {
				return nil, fmt.Errorf("register rate limit metrics: %w", err)
			}
			opts = append(opts, ratelimit.WithMetrics(m))
		}
		s.limiter = ratelimit.New(resolved.RateLimit.Store, opts...)
	}

	filler, err := session.GenerateSecret()
	if err != nil {
		return nil, err
	}
	if s.dummyHash, err = session.HashPassword(filler); err != nil {
		return nil, err
	}

	if err := s.registerCoreRoutes(); err != nil {
		return nil, err
	}
	if err := s.registerPluginRoutes(); err != nil {
		return nil, err
	}
	if err := s.refreshOpenAPI(); err != nil {
		return nil, err
	}

	return s, nil
}

// BasePath is the prefix every route is served under.
func (s *Server) BasePath() string {
	return s.cfg.BasePath
}

// Gate returns the admin gate used for protected routes.
func (s *Server) Gate() *Gate {
	return s.gate
}

// StartBackground runs the limiter sweeper until ctx is done. It is a no-op
// when rate limiting is disabled.
func (s *Server) StartBackground(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	go s.limiter.RunSweeper(ctx, s.cfg.RateLimit.SweepInterval, func(err error) {
		s.log.Error("rate limit sweep failed", "err", err)
	})
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := cleanPath(r.URL.Path)
		if path == "" {
			path = "/"
		}

		methods, exists := s.routes[path]
		if !exists {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found", nil)
			return
		}

		rt, ok := methods[strings.ToUpper(r.Method)]
		if !ok {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
			return
		}

		if err := s.checkRequestPolicy(r); err != nil {
			writeError(w, http.StatusForbidden, "REQUEST_BLOCKED", err.Error(), nil)
			return
		}

		if s.limiter != nil && rt.limited && !s.allow(w, r, rt) {
			return
		}

		rt.handler.ServeHTTP(w, r)
	})
}

// allow charges the request to its operation and writes the rate limit
// headers. It answers the request itself and returns false when the request
// must not proceed.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, rt route) bool {
	client := ratelimit.ClientIdentifier(r.Header)
	res, err := s.limiter.Check(r.Context(), ratelimit.Key(rt.operation, client), rt.rule)
	if err != nil {
		s.log.ErrorContext(r.Context(), "rate limit check failed", "operation", rt.operation, "err", err)
		writeError(w, http.StatusServiceUnavailable, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable", nil)
		return false
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if res.Allowed {
		return true
	}

	seconds := int(res.RetryAfter(s.cfg.Now()) / time.Second)
	h.Set("Retry-After", strconv.Itoa(seconds))
	s.log.WarnContext(r.Context(), "rate limit exceeded", "operation", rt.operation, "client", client)
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Too many requests. Please try again in %d seconds.", seconds),
		map[string]any{"retryAfter": seconds},
	)
	return false
}

func (s *Server) OpenAPISpec(_ context.Context) ([]byte, error) {
	out := make([]byte, len(s.openapi))
	copy(out, s.openapi)
	return out, nil
}

func (s *Server) registerCoreRoutes() error {
	core := []plugin.Endpoint{
		{Method: http.MethodGet, Path: "/ok", Summary: "Health check", Tags: []string{"Core"}, Handler: s.handleOK},
		{Method: http.MethodGet, Path: "/openapi.json", Summary: "OpenAPI specification", Tags: []string{"Core"}, Handler: s.handleOpenAPI},
		{
			Method: http.MethodPost, Path: "/admin/login", Summary: "Sign in as an admin",
			Tags: []string{"Admin"}, Operation: "admin-login", Tier: ratelimit.TierStrict,
			Handler: s.handleAdminLogin,
		},
		{
			Method: http.MethodPost, Path: "/admin/logout", Summary: "Clear the admin session",
			Tags: []string{"Admin"}, Operation: "admin-logout", Tier: ratelimit.TierStandard,
			Handler: s.handleAdminLogout,
		},
		{
			Method: http.MethodGet, Path: "/admin/session", Summary: "Current admin session",
			Tags: []string{"Admin"}, Operation: "admin-session", Tier: ratelimit.TierRelaxed,
			Protected: true, Handler: s.handleAdminSession,
		},
		{
			Method: http.MethodPost, Path: "/admin/credentials", Summary: "Create an admin credential",
			Tags: []string{"Admin"}, Operation: "admin-credentials", Tier: ratelimit.TierAdmin,
			Protected: true, Handler: s.handleCreateCredential,
		},
	}
	for _, ep := range core {
		if err := s.addRoute(ep); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) registerPluginRoutes() error {
	registry := plugin.NewRegistry(plugin.Services{
		Store:  s.cfg.PrimaryStore,
		Logger: s.log,
	})
	for _, p := range s.cfg.Plugins {
		if p == nil {
			continue
		}
		if strings.TrimSpace(p.ID()) == "" {
			return errors.New("plugin id cannot be empty")
		}
		if err := p.Register(registry); err != nil {
			return fmt.Errorf("register plugin %q: %w", p.ID(), err)
		}
	}

	for _, endpoint := range registry.Endpoints() {
		if err := s.addRoute(endpoint); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) addRoute(ep plugin.Endpoint) error {
	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	path := routePath(s.cfg.BasePath, ep.Path)
	if method == "" || path == "" || ep.Handler == nil {
		return fmt.Errorf("invalid route registration %q %q", method, path)
	}

	rt := route{handler: ep.Handler, operation: strings.TrimSpace(ep.Operation)}
	tier := strings.ToLower(strings.TrimSpace(ep.Tier))
	if tier != "" {
		rule, ok := s.cfg.RateLimit.Tiers[tier]
		if !ok {
			return fmt.Errorf("route %s %s: unknown rate limit tier %q", method, path, tier)
		}
		if rt.operation == "" {
			return fmt.Errorf("route %s %s: tier %q requires an operation", method, path, tier)
		}
		rt.rule = rule
		rt.limited = true
	}
	if ep.Protected {
		rt.handler = s.gate.Require(rt.handler)
	}

	if _, ok := s.routes[path]; !ok {
		s.routes[path] = map[string]route{}
		s.summaries[path] = map[string]routeDoc{}
	}
	if _, exists := s.routes[path][method]; exists {
		return fmt.Errorf("conflicting route registration for %s %s", method, path)
	}

	s.routes[path][method] = rt
	s.summaries[path][method] = routeDoc{
		Method:    method,
		Path:      path,
		Summary:   ep.Summary,
		Tags:      ep.Tags,
		Operation: rt.operation,
		Tier:      tier,
		Protected: ep.Protected,
	}
	return nil
}

func (s *Server) refreshOpenAPI() error {
	docs := make([]routeDoc, 0, len(s.summaries)*2)
	for path, byMethod := range s.summaries {
		for method, d := range byMethod {
			d.Method = method
			d.Path = path
			docs = append(docs, d)
		}
	}
	spec, err := buildOpenAPISpec(s.cfg.AppName, s.cfg.Session.CookieName, docs)
	if err != nil {
		return err
	}
	s.openapi = bytes.Clone(spec)
	return nil
}

// checkRequestPolicy rejects state-changing requests from untrusted origins.
func (s *Server) checkRequestPolicy(r *http.Request) error {
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return nil
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if !originAllowed(origin, s.cfg.TrustedOrigins) {
		return errors.New("origin is not trusted")
	}
	return nil
}
