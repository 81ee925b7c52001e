package provider

import (
	"context"
	"errors"
)

// Identity is the normalized result of a completed external login. The
// engine reconciles it into a local account; this package only reports
// what the identity provider asserted.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

// Provider abstracts an OAuth 2.0 / OpenID-style identity provider.
//
// AuthCodeURL builds the URL the browser is redirected to; state must be
// echoed back on the callback. Exchange trades the callback code for the
// provider's identity assertion.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

// ErrExchangeFailed wraps every failure between receiving the callback
// code and producing a usable identity. Callers need no finer grain; the
// cause is preserved for logs.
var ErrExchangeFailed = errors.New("provider: code exchange failed")
