package session

// Session is the server-side record behind one refresh token. The
// RefreshHash is the SHA-256 of the token's secret half; the secret
// itself is never stored.
type Session struct {
	SessionID string
	UserID    string
	Email     string

	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
