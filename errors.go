package authcove

import "errors"

var (
	// ErrUnauthorized is the single outcome for every access-token
	// validation failure. Callers never learn whether the token was
	// expired, tampered, or addressed to the wrong audience.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is the uniform login failure. It does not
	// reveal whether the email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is the uniform refresh failure, covering missing,
	// expired, revoked, and replayed tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrDuplicateAccount is returned by Register when the email is taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrWeakCredential is returned by Register when the password fails
	// the configured policy.
	ErrWeakCredential = errors.New("password does not meet policy")
	// ErrExternalAuthFailed is returned when an external-provider claim is
	// unusable for login.
	ErrExternalAuthFailed = errors.New("external authentication failed")
	// ErrEmailConflict is returned when an external identity cannot be
	// linked because ownership of the matching email is ambiguous.
	ErrEmailConflict = errors.New("email ownership conflict")
	// ErrUserNotFound is returned by UserStore lookups that match nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps credential-store transport failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// engine missing a required dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
