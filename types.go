package authcove

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/authcove/authcove/internal/audit"
)

// UserRecord is the account record exchanged with the [UserStore].
// External-only accounts carry an empty PasswordHash and can never pass
// password login.
type UserRecord struct {
	UserID        string
	Email         string
	EmailVerified bool
	PasswordHash  string
	CreatedAt     time.Time
}

// CreateUserInput is the input for [UserStore.CreateUser]. Email must
// already be normalized by the caller.
type CreateUserInput struct {
	Email         string
	PasswordHash  string
	EmailVerified bool
}

// ExternalClaim is the identity asserted by an external provider after a
// successful handshake. It is transient; only the (Provider, Subject)
// link survives reconciliation.
type ExternalClaim struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
}

// TokenPair is one freshly issued access+refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterResult is returned by [Engine.Register].
type RegisterResult struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// AuthResult is the identity extracted from a valid access token by
// [Engine.ValidateAccess].
type AuthResult struct {
	UserID    string
	Email     string
	SessionID string
}

// UserStore is the credential store the engine persists users through.
// Implementations must report duplicates with [ErrDuplicateAccount],
// missing records with [ErrUserNotFound], and transport failures wrapped
// in [ErrStoreUnavailable]. Email lookups are case-insensitive.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	GetUserByExternalIdentity(ctx context.Context, provider, subject string) (UserRecord, error)
	LinkExternalIdentity(ctx context.Context, userID, provider, subject string) error
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit
// dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
