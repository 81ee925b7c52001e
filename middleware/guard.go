package middleware

import (
	"context"
	"net/http"
	"strings"

	authcove "github.com/authcove/authcove"
)

// DefaultAccessCookie is the cookie name the guard reads when no
// override is given. It matches the name the HTTP API sets.
const DefaultAccessCookie = "ACCESS_TOKEN"

type authResultContextKey struct{}

// AuthResultFromContext returns the validated identity injected by
// [Guard], or false when the request did not pass through it.
func AuthResultFromContext(ctx context.Context) (*authcove.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcove.AuthResult)
	return res, ok
}

// Guard returns middleware that authenticates requests against the
// engine. The access token is taken from the named cookie first, then
// from the Authorization header as a bearer token. Requests without a
// valid token are rejected with 401 before the wrapped handler runs.
func Guard(engine *authcove.Engine, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultAccessCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := accessToken(r, cookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is Guard with the default cookie name.
func RequireAuth(engine *authcove.Engine) func(http.Handler) http.Handler {
	return Guard(engine, DefaultAccessCookie)
}

func accessToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
