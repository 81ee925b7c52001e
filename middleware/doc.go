// Package middleware exposes HTTP middleware for access token enforcement
// built on top of authcove.Engine validation.
//
// # Guards
//
//   - [Guard] — cookie-first token extraction with a bearer header fallback.
//   - [RequireAuth] — Guard with the default ACCESS_TOKEN cookie name.
//
// Each guard extracts the access token, calls Engine.ValidateAccess, and
// injects the validated identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the user store (validation is local to the token).
//   - Make authorization decisions beyond pass/reject from ValidateAccess.
package middleware
