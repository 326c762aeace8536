package auth

import (
	"errors"
	"net/http"

	"github.com/SnowzyTech/regime/sanitize"
	"github.com/SnowzyTech/regime/session"
	"github.com/SnowzyTech/regime/storage"
	"github.com/SnowzyTech/regime/validate"
)

const maxPasswordLength = 128

func (s *Server) handleOK(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{
		Status:  "ok",
		AppName: s.cfg.AppName,
		Version: Version,
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.openapi)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}

	var errs validate.Errors
	if !validate.Email(req.Email) {
		errs.Add("email", "Invalid email address")
	}
	if !validate.Length(req.Password, 1, maxPasswordLength) {
		errs.Add("password", "Password is required")
	}
	if !errs.Empty() {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", errs.First(), errs.Details())
		return
	}

	email := sanitize.Email(req.Email)
	cred, err := s.cfg.PrimaryStore.FindAdminCredentialByEmail(r.Context(), email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		session.VerifyPassword(req.Password, s.dummyHash)
		s.rejectLogin(w, r, email)
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "admin credential lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
		return
	}
	if !session.VerifyPassword(req.Password, cred.PasswordHash) {
		s.rejectLogin(w, r, email)
		return
	}

	token, err := s.signer.Sign(session.AdminSession{Email: cred.Email, Role: session.RoleAdmin}, s.cfg.Session.TTL)
	if err != nil {
		s.log.ErrorContext(r.Context(), "sign admin session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
		return
	}
	s.setSessionCookie(w, token)

	s.log.InfoContext(r.Context(), "admin login succeeded", "email", cred.Email)
	writeJSON(w, http.StatusOK, adminEnvelope{
		Success: true,
		Admin:   adminView{Email: cred.Email, Role: session.RoleAdmin},
	})
}

func (s *Server) rejectLogin(w http.ResponseWriter, r *http.Request, email string) {
	s.log.WarnContext(r.Context(), "admin login failed", "email", email)
	writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid admin credentials", nil)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", ReasonNoSession, nil)
		return
	}
	writeJSON(w, http.StatusOK, adminEnvelope{
		Admin: adminView{Email: sess.Email, Role: sess.Role},
	})
}

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}

	var errs validate.Errors
	if !validate.Email(req.Email) {
		errs.Add("email", "Invalid email address")
	}
	if msg := validate.StrongPassword(req.Password); msg != "" {
		errs.Add("password", msg)
	}
	if !errs.Empty() {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", errs.First(), errs.Details())
		return
	}

	hash, err := session.HashPassword(req.Password)
	if err != nil {
		s.log.ErrorContext(r.Context(), "hash admin password failed", "err", err)
		writeError(w, http.StatusInternalServerError, "PASSWORD_HASH_FAILED", "Failed to create admin credential", nil)
		return
	}

	cred, err := s.cfg.PrimaryStore.CreateAdminCredential(r.Context(), storage.CreateAdminCredentialParams{
		Email:        sanitize.Email(req.Email),
		PasswordHash: hash,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "CREDENTIAL_EXISTS", "Admin credential already exists", nil)
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "create admin credential failed", "err", err)
		writeError(w, http.StatusInternalServerError, "CREATE_CREDENTIAL_FAILED", "Failed to create admin credential", nil)
		return
	}

	actor, _ := session.FromContext(r.Context())
	s.log.InfoContext(r.Context(), "admin credential created", "email", cred.Email, "by", actor.Email)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"admin": credentialView{
			ID:        cred.ID,
			Email:     cred.Email,
			CreatedAt: cred.CreatedAt,
		},
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.Session.TTL.Seconds()),
	})
}

// clearSessionCookie emits Max-Age=0.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
