package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authcove "github.com/authcove/authcove"
	"github.com/authcove/authcove/metrics/export/prometheus"
	"github.com/authcove/authcove/middleware"
	"github.com/authcove/authcove/provider"
)

const (
	// AccessCookie and RefreshCookie are the delivery cookies for the
	// token pair. Both are always httpOnly.
	AccessCookie  = "ACCESS_TOKEN"
	RefreshCookie = "REFRESH_TOKEN"

	stateCookie     = "OAUTH_STATE"
	returnURLCookie = "OAUTH_RETURN"
	stateCookieAge  = 10 * time.Minute
)

// Config carries the transport-level settings: cookie attributes, token
// lifetimes for cookie expiry, and the landing page after external login.
type Config struct {
	CookiePath   string
	CookieDomain string
	CookieSecure bool
	SameSite     http.SameSite

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// DefaultReturnURL is where external login lands when the caller
	// did not pass a returnUrl. Must be a relative path.
	DefaultReturnURL string
}

// DefaultConfig returns the transport defaults. Cookie lifetimes follow
// the engine's token TTL defaults.
func DefaultConfig() Config {
	return Config{
		CookiePath:       "/",
		CookieSecure:     true,
		SameSite:         http.SameSiteLaxMode,
		AccessTTL:        5 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		DefaultReturnURL: "/",
	}
}

// Server exposes the engine over HTTP. The identity provider is optional;
// without one the external login routes answer 503.
type Server struct {
	engine *authcove.Engine
	idp    provider.Provider
	cfg    Config
}

// NewServer builds a Server. idp may be nil.
func NewServer(engine *authcove.Engine, idp provider.Provider, cfg Config) *Server {
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.DefaultReturnURL == "" {
		cfg.DefaultReturnURL = "/"
	}
	return &Server{engine: engine, idp: idp, cfg: cfg}
}

// Router assembles the chi router with every account route, the metrics
// endpoint, and the guarded identity probe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/account", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Get("/login/external", s.handleExternalStart)
		r.Get("/login/external/callback", s.handleExternalCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(s.engine, AccessCookie))
			r.Get("/me", s.handleMe)
		})
	})

	r.Method(http.MethodGet, "/metrics", prometheus.NewPrometheusExporter(s.engine).Handler())

	return r
}

func (s *Server) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, s.cookie(AccessCookie, access, int(s.cfg.AccessTTL.Seconds())))
	http.SetCookie(w, s.cookie(RefreshCookie, refresh, int(s.cfg.RefreshTTL.Seconds())))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(AccessCookie, "", -1))
	http.SetCookie(w, s.cookie(RefreshCookie, "", -1))
}

func (s *Server) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.CookiePath,
		Domain:   s.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: s.cfg.SameSite,
	}
}
