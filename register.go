package sessionauth

import (
	"context"
	"errors"
	"strings"
)

// Register creates a new account and immediately issues a token pair for it,
// so a successful registration behaves like a first login. The password is
// checked against policy before hashing; the provider's duplicate-email
// sentinel maps to [ErrEmailInUse].
func (iss *Issuer) Register(ctx context.Context, req RegisterRequest) (*Credentials, error) {
	if iss == nil || iss.passwordHash == nil {
		return nil, ErrIssuerNotReady
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		iss.metricInc(MetricRegisterFailure)
		iss.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "invalid_email",
			}
		})
		return nil, ErrInvalidCredentials
	}
	if len(req.Password) < iss.config.Password.MinLength {
		iss.metricInc(MetricRegisterFailure)
		iss.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrWeakPassword, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "password_policy",
			}
		})
		return nil, ErrWeakPassword
	}

	role := req.Role
	if role == "" {
		role = iss.config.DefaultRole
	}

	hash, err := iss.passwordHash.Hash(req.Password)
	if err != nil {
		iss.metricInc(MetricRegisterFailure)
		iss.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "hash_failed",
			}
		})
		return nil, err
	}

	user, err := iss.userProvider.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateEmail) {
			iss.metricInc(MetricRegisterDuplicate)
			iss.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailInUse, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return nil, ErrEmailInUse
		}
		iss.metricInc(MetricRegisterFailure)
		iss.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "provider_create_failed",
			}
		})
		return nil, err
	}

	creds, sessionID, err := iss.mintCredentials(ctx, user, req.RememberMe)
	if err != nil {
		iss.metricInc(MetricRegisterFailure)
		iss.emitAudit(ctx, auditEventRegisterFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "mint_failed",
			}
		})
		return nil, err
	}

	iss.metricInc(MetricSessionCreated)
	iss.metricInc(MetricRegisterSuccess)
	iss.emitAudit(ctx, auditEventRegisterSuccess, true, user.UserID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})

	return creds, nil
}
