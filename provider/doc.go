// Package provider implements the outbound half of federated login: the
// authorization-code round trip against an external identity provider.
//
// The [Provider] interface yields a normalized [Identity]; mapping that
// identity onto a local account is the engine's job, not this package's.
// [OIDC] is a generic implementation that works against any provider
// exposing auth, token, and userinfo endpoints.
package provider
