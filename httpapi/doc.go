// Package httpapi is the transport boundary: it maps the engine's
// operations onto HTTP routes and delivers the token pair as httpOnly
// cookies (ACCESS_TOKEN, REFRESH_TOKEN).
//
// # Routes
//
//   - POST /api/account/register — create account, issue cookies.
//   - POST /api/account/login — password login, issue cookies.
//   - POST /api/account/refresh — rotate refresh cookie, reissue both.
//   - POST /api/account/logout — revoke session, clear cookies.
//   - GET  /api/account/login/external — start provider handshake.
//   - GET  /api/account/login/external/callback — finish handshake.
//   - GET  /api/account/me — guarded identity probe.
//   - GET  /metrics — Prometheus text exposition.
//
// # Status mapping
//
// Duplicate accounts and weak passwords answer 400; invalid credentials,
// invalid tokens, and failed handshakes answer 401; email conflicts
// during external reconciliation answer 409. Backend outages answer 503
// without leaking which backend failed.
//
// # What this package must NOT do
//
//   - Implement authentication decisions (delegated to the engine).
//   - Accept absolute or protocol-relative returnUrl targets.
package httpapi
