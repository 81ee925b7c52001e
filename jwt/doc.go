// Package jwt mints and validates the signed access tokens issued by the
// engine. Tokens are short-lived, carry {sub, email, sid, iss, aud, iat,
// exp}, and are validated against a single process-wide key loaded at
// startup.
//
// The Manager is a pure function over its configured key and clock: it
// persists nothing and performs no I/O.
package jwt
