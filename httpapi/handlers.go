package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	authcove "github.com/authcove/authcove"
	"github.com/authcove/authcove/middleware"
	"github.com/authcove/authcove/session"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type identityResponse struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.engine.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setAuthCookies(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, registerResponse{UserID: res.UserID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	access, refresh, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setAuthCookies(w, access, refresh)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(RefreshCookie); err == nil {
		token = c.Value
	}

	access, refresh, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		// A failed refresh ends the browser's session either way.
		if errors.Is(err, authcove.ErrInvalidToken) {
			s.clearAuthCookies(w)
		}
		s.writeError(w, err)
		return
	}

	s.setAuthCookies(w, access, refresh)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		if res, err := s.engine.ValidateAccess(r.Context(), c.Value); err == nil {
			if err := s.engine.Logout(r.Context(), res.SessionID); err != nil {
				slog.Error("logout failed", slog.String("error", err.Error()))
			}
		}
	}

	// Cookies clear even when no valid session was attached.
	s.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		s.writeError(w, authcove.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{
		UserID:    res.UserID,
		Email:     res.Email,
		SessionID: res.SessionID,
	})
}

func (s *Server) handleExternalStart(w http.ResponseWriter, r *http.Request) {
	if s.idp == nil {
		http.Error(w, "external login not configured", http.StatusServiceUnavailable)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("state generation failed", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	returnURL := r.URL.Query().Get("returnUrl")
	if !validReturnURL(returnURL) {
		returnURL = s.cfg.DefaultReturnURL
	}

	http.SetCookie(w, s.stateCookie(stateCookie, state, int(stateCookieAge.Seconds())))
	http.SetCookie(w, s.stateCookie(returnURLCookie, returnURL, int(stateCookieAge.Seconds())))

	http.Redirect(w, r, s.idp.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleExternalCallback(w http.ResponseWriter, r *http.Request) {
	if s.idp == nil {
		http.Error(w, "external login not configured", http.StatusServiceUnavailable)
		return
	}

	state := r.URL.Query().Get("state")
	sc, err := r.Cookie(stateCookie)
	if err != nil || state == "" || sc.Value != state {
		slog.Warn("oauth state mismatch")
		http.SetCookie(w, s.stateCookie(stateCookie, "", -1))
		http.Error(w, "invalid state parameter", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, s.stateCookie(stateCookie, "", -1))

	returnURL := s.cfg.DefaultReturnURL
	if rc, err := r.Cookie(returnURLCookie); err == nil && validReturnURL(rc.Value) {
		returnURL = rc.Value
	}
	http.SetCookie(w, s.stateCookie(returnURLCookie, "", -1))

	code := r.URL.Query().Get("code")
	identity, err := s.idp.Exchange(r.Context(), code)
	if err != nil {
		slog.Warn("external code exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	access, refresh, err := s.engine.LoginExternal(r.Context(), authcove.ExternalClaim{
		Provider:      identity.Provider,
		Subject:       identity.Subject,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setAuthCookies(w, access, refresh)
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// stateCookie is a short-lived handshake cookie; unlike the auth cookies
// it never carries a domain so it stays on the exact callback host.
func (s *Server) stateCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.CookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcove.ErrDuplicateAccount):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account_exists"})
	case errors.Is(err, authcove.ErrWeakCredential):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "weak_password"})
	case errors.Is(err, authcove.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_credentials"})
	case errors.Is(err, authcove.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_token"})
	case errors.Is(err, authcove.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, authcove.ErrEmailConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email_conflict"})
	case errors.Is(err, authcove.ErrExternalAuthFailed):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication_failed"})
	case errors.Is(err, authcove.ErrStoreUnavailable), errors.Is(err, session.ErrRedisUnavailable):
		slog.Error("backend unavailable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service_unavailable"})
	default:
		slog.Error("unhandled engine error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed_request"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func generateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// validReturnURL admits only same-site relative paths. Protocol-relative
// ("//evil.com") and backslash variants are open redirects and rejected.
func validReturnURL(raw string) bool {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return false
	}
	if strings.ContainsAny(raw, "\r\n") {
		return false
	}
	return true
}
