package authcove

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/authcove/authcove/internal"
	"github.com/authcove/authcove/jwt"
	"github.com/authcove/authcove/password"
	"github.com/authcove/authcove/session"
)

// tokenManager is the access-token surface the engine needs from
// [jwt.Manager].
type tokenManager interface {
	CreateAccess(userID, email, sessionID string) (string, error)
	ParseAccess(tokenStr string) (*jwt.AccessClaims, error)
}

// Engine is the session reconciler: it owns the register, login, refresh,
// and external-login flows and is the only writer of refresh sessions.
// All fields are set at Build time and never mutated afterwards.
type Engine struct {
	config       Config
	sessionStore *session.Store
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   tokenManager
	users        UserStore
	now          func() time.Time
}

// Close flushes the audit dispatcher. The engine must not be used after
// Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login verifies the password for the account behind email and, on
// success, replaces any previous session with a fresh access+refresh
// pair. Every failure is reported as [ErrInvalidCredentials]; the caller
// cannot tell a missing account from a wrong password.
func (e *Engine) Login(ctx context.Context, email, pass string) (string, string, error) {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return "", "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return "", "", ErrInvalidCredentials
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", "", err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "user_not_found",
			}
		})
		return "", "", ErrInvalidCredentials
	}

	// External-only accounts have no password hash and cannot pass here.
	if user.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "no_password_credential",
			}
		})
		return "", "", ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_mismatch",
			}
		})
		return "", "", ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block login.
				if err := e.users.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					log.Print("authcove: password hash upgrade update failed")
				}
			} else {
				log.Print("authcove: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	access, refresh, err := e.startSession(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "session_start_failed",
			}
		})
		return "", "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return access, refresh, nil
}

// Refresh rotates the presented refresh token: exactly one concurrent
// presenter of a given token value receives a new pair, every other
// presenter receives [ErrInvalidToken]. A stale presentation revokes the
// whole session, so a stolen-and-replayed token dies together with the
// thief's copy.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.sessionStore == nil {
		return "", "", ErrEngineNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return "", "", ErrInvalidToken
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "next_secret_generation",
			}
		})
		return "", "", err
	}

	sess, err := e.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			// Reuse is audited distinctly but reported to the caller
			// exactly like any other invalid token.
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sessionID, ErrInvalidToken, nil)
			return "", "", ErrInvalidToken
		case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrInvalidToken, func() map[string]string {
				return map[string]string{
					"reason": "session_gone",
				}
			})
			return "", "", ErrInvalidToken
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
				return map[string]string{
					"reason": "rotate_failed",
				}
			})
			return "", "", err
		}
	}

	// A deleted account must not be resurrected through a surviving
	// session. The session is dropped the moment the gap is seen.
	if _, err := e.users.GetUserByID(ctx, sess.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.discardRotatedSession(ctx, sess.SessionID)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, ErrInvalidToken, func() map[string]string {
				return map[string]string{
					"reason": "user_gone",
				}
			})
			return "", "", ErrInvalidToken
		}
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	// Past this point the stored hash matches a secret the client has not
	// received yet. Any failure must take the session down with it, or the
	// user is stranded with a token that can never rotate.
	access, err := e.jwtManager.CreateAccess(sess.UserID, sess.Email, sess.SessionID)
	if err != nil {
		e.discardRotatedSession(ctx, sess.SessionID)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		e.discardRotatedSession(ctx, sess.SessionID)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "encode_refresh_failed",
			}
		})
		return "", "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sess.SessionID, nil, nil)

	return access, refresh, nil
}

// ValidateAccess verifies an access token without touching Redis or the
// credential store. Every failure is [ErrUnauthorized]; the cause is
// deliberately not distinguished.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &AuthResult{
		UserID:    claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SID,
	}, nil
}

// discardRotatedSession deletes a session whose current refresh hash
// corresponds to a secret the client never received.
func (e *Engine) discardRotatedSession(ctx context.Context, sessionID string) {
	if err := e.sessionStore.Delete(ctx, sessionID); err != nil {
		log.Print("authcove: orphan session cleanup failed")
	}
	e.metricInc(MetricSessionInvalidated)
}

// Logout revokes a single session. Revoking an unknown session is not an
// error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutAll revokes every session of a user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

// startSession mints a fresh access+refresh pair for user. Any previous
// sessions are deleted first, keeping at most one active refresh token
// per user.
func (e *Engine) startSession(ctx context.Context, user UserRecord) (string, string, error) {
	if err := e.sessionStore.DeleteAllForUser(ctx, user.UserID); err != nil {
		return "", "", err
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return "", "", err
	}
	sessionID := sid.String()

	refreshSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", err
	}

	now := e.now()
	sess := &session.Session{
		SessionID:   sessionID,
		UserID:      user.UserID,
		Email:       user.Email,
		RefreshHash: internal.HashRefreshSecret(refreshSecret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(e.config.JWT.RefreshTTL).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, e.config.JWT.RefreshTTL); err != nil {
		return "", "", err
	}
	e.metricInc(MetricSessionCreated)

	access, err := e.jwtManager.CreateAccess(user.UserID, user.Email, sessionID)
	if err != nil {
		return "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(sessionID, refreshSecret)
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
