package authcove

import (
	"context"
	"errors"
)

// Register creates a password account and logs it in immediately. The
// email is normalized to lower case before the uniqueness check, so
// "A@x.com" and "a@x.com" are the same account.
func (e *Engine) Register(ctx context.Context, email, pass string) (*RegisterResult, error) {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_email",
			}
		})
		return nil, ErrInvalidCredentials
	}

	if err := e.passwordHash.CheckPolicy(pass); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrWeakCredential, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "password_policy",
			}
		})
		return nil, ErrWeakCredential
	}

	passwordHash, err := e.passwordHash.Hash(pass)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "hash_failed",
			}
		})
		return nil, err
	}
	pass = ""

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrDuplicateAccount, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			return nil, ErrDuplicateAccount
		}
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "store_create_failed",
			}
		})
		return nil, err
	}

	access, refresh, err := e.startSession(ctx, user)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, false, user.UserID, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": "session_start_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})

	return &RegisterResult{
		UserID:       user.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
