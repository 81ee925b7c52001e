// Package authcove implements web identity credentials: password
// registration and login, short-lived signed access tokens, rotating
// opaque refresh tokens stored in Redis, and reconciliation of external
// OpenID-style logins into the same session model.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// authcove is the public surface. It exposes [Engine], [Builder],
// [Config], the [UserStore] contract, and value types. Token encoding
// and audit primitives live under internal/ and are never exported
// directly.
//
// # Error discipline
//
// Token and credential failures are uniform: all login
// failures are [ErrInvalidCredentials], all refresh failures are
// [ErrInvalidToken], and all access-token validation failures are
// [ErrUnauthorized]. Finer-grained causes are visible only in audit
// events and metrics, never to the caller.
//
// # Performance contract
//
// ValidateAccess is the hot path. It verifies the token signature and
// claims locally and never performs a Redis or credential-store
// round-trip. Login, Register, Refresh, and LoginExternal are allowed
// store round-trips.
package authcove
