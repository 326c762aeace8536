package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SnowzyTech/regime/session"
)

// Reasons reported by the gate. They are safe to return to clients.
const (
	ReasonNoSession          = "No admin session found"
	ReasonInvalidSession     = "Invalid or expired session"
	ReasonInsufficientRole   = "Insufficient permissions"
	ReasonVerificationFailed = "Authentication verification failed"
)

// GateResult is the outcome of one admin check. Error is empty when
// Authenticated is true.
type GateResult struct {
	Authenticated bool
	Session       session.AdminSession
	Error         string
}

// Gate decides whether a request carries a valid admin session.
type Gate struct {
	signer     *session.Signer
	cookieName string
	log        *slog.Logger
}

func NewGate(signer *session.Signer, cookieName string, logger *slog.Logger) *Gate {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{signer: signer, cookieName: cookieName, log: logger}
}

// Verify checks a raw token. It never panics: any failure inside
// verification is reported as ReasonVerificationFailed.
func (g *Gate) Verify(token string) (res GateResult) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("admin session verification panicked", "panic", rec)
			res = GateResult{Error: ReasonVerificationFailed}
		}
	}()

	if strings.TrimSpace(token) == "" {
		return GateResult{Error: ReasonNoSession}
	}

	sess, err := g.signer.Verify(token)
	if err != nil {
		if !errors.Is(err, session.ErrExpired) {
			g.log.Warn("admin session rejected", "reason", err.Error())
		}
		return GateResult{Error: ReasonInvalidSession}
	}
	if !sess.IsAdmin() {
		return GateResult{Error: ReasonInsufficientRole}
	}
	return GateResult{Authenticated: true, Session: sess}
}

// VerifyRequest reads the session cookie from r.
func (g *Gate) VerifyRequest(r *http.Request) GateResult {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil {
		return GateResult{Error: ReasonNoSession}
	}
	return g.Verify(cookie.Value)
}

// Require answers 401 with the gate's reason unless the request is from an
// admin. The verified session is available to next via session.FromContext.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.VerifyRequest(r)
		if !res.Authenticated {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", res.Error, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), res.Session)))
	})
}
