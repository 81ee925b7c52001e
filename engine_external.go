package authcove

import (
	"context"
	"errors"
)

// LoginExternal reconciles a provider-asserted identity into a session.
// Precedence is fixed: an existing (provider, subject) link always wins;
// otherwise a user owning the claim's verified email gets the identity
// linked; otherwise a new passwordless account is created. Linking by
// email requires the provider to assert the email as verified, so an
// attacker cannot claim an unverified address at a provider and take
// over the matching local account.
func (e *Engine) LoginExternal(ctx context.Context, claim ExternalClaim) (string, string, error) {
	if e == nil || e.users == nil {
		return "", "", ErrEngineNotReady
	}

	if claim.Provider == "" || claim.Subject == "" {
		e.metricInc(MetricExternalLoginFailure)
		e.emitAudit(ctx, auditEventExternalLoginFailure, false, "", "", ErrExternalAuthFailed, func() map[string]string {
			return map[string]string{
				"provider": claim.Provider,
				"reason":   "incomplete_claim",
			}
		})
		return "", "", ErrExternalAuthFailed
	}

	user, err := e.reconcileExternalIdentity(ctx, claim)
	if err != nil {
		e.metricInc(MetricExternalLoginFailure)
		e.emitAudit(ctx, auditEventExternalLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"provider": claim.Provider,
			}
		})
		return "", "", err
	}

	access, refresh, err := e.startSession(ctx, user)
	if err != nil {
		e.metricInc(MetricExternalLoginFailure)
		e.emitAudit(ctx, auditEventExternalLoginFailure, false, user.UserID, "", err, func() map[string]string {
			return map[string]string{
				"provider": claim.Provider,
				"reason":   "session_start_failed",
			}
		})
		return "", "", err
	}

	e.metricInc(MetricExternalLoginSuccess)
	e.emitAudit(ctx, auditEventExternalLoginSuccess, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"provider": claim.Provider,
		}
	})

	return access, refresh, nil
}

func (e *Engine) reconcileExternalIdentity(ctx context.Context, claim ExternalClaim) (UserRecord, error) {
	user, err := e.users.GetUserByExternalIdentity(ctx, claim.Provider, claim.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return UserRecord{}, err
	}

	email := normalizeEmail(claim.Email)
	if email == "" {
		return UserRecord{}, ErrExternalAuthFailed
	}
	// Without a (provider, subject) link the email is the only anchor,
	// and an unverified one proves nothing. No link, no account.
	if !claim.EmailVerified {
		return UserRecord{}, ErrEmailConflict
	}

	existing, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := e.users.LinkExternalIdentity(ctx, existing.UserID, claim.Provider, claim.Subject); err != nil {
			if errors.Is(err, ErrDuplicateAccount) {
				return e.userBehindLink(ctx, claim)
			}
			return UserRecord{}, err
		}
		e.metricInc(MetricExternalIdentityLinked)
		e.emitAudit(ctx, auditEventExternalIdentityLinked, true, existing.UserID, "", nil, func() map[string]string {
			return map[string]string{
				"provider": claim.Provider,
			}
		})
		return existing, nil
	case errors.Is(err, ErrUserNotFound):
		created, err := e.users.CreateUser(ctx, CreateUserInput{
			Email:         email,
			EmailVerified: claim.EmailVerified,
		})
		if err != nil {
			// A concurrent registration can slip in between the lookup
			// and the insert; surface it as a conflict, not a crash.
			if errors.Is(err, ErrDuplicateAccount) {
				return UserRecord{}, ErrEmailConflict
			}
			return UserRecord{}, err
		}
		if err := e.users.LinkExternalIdentity(ctx, created.UserID, claim.Provider, claim.Subject); err != nil {
			if errors.Is(err, ErrDuplicateAccount) {
				return e.userBehindLink(ctx, claim)
			}
			return UserRecord{}, err
		}
		e.metricInc(MetricExternalIdentityLinked)
		e.emitAudit(ctx, auditEventExternalIdentityLinked, true, created.UserID, "", nil, func() map[string]string {
			return map[string]string{
				"provider": claim.Provider,
			}
		})
		return created, nil
	default:
		return UserRecord{}, err
	}
}

// userBehindLink resolves a lost linking race. When a concurrent callback
// for the same (provider, subject) landed its link first, the link on
// record wins and this login proceeds as that user.
func (e *Engine) userBehindLink(ctx context.Context, claim ExternalClaim) (UserRecord, error) {
	user, err := e.users.GetUserByExternalIdentity(ctx, claim.Provider, claim.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrExternalAuthFailed
		}
		return UserRecord{}, err
	}
	return user, nil
}
