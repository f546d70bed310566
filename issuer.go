package sessionauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/sessionauth/internal"
	internalaudit "github.com/quantfolio/sessionauth/internal/audit"
	"github.com/quantfolio/sessionauth/internal/rate"
	"github.com/quantfolio/sessionauth/password"
	"github.com/quantfolio/sessionauth/session"
	"github.com/quantfolio/sessionauth/token"
)

// Issuer is the authority over the token lifecycle: it authenticates
// credentials, mints access/refresh pairs, rotates refresh tokens, and
// revokes sessions. An Issuer is safe for concurrent use; construct it
// through [Builder.Build].
type Issuer struct {
	config       Config
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	tokenManager *token.Manager
	userProvider UserProvider
	dummyHash    string
}

// Close flushes and stops the audit dispatcher. Safe to call twice.
func (iss *Issuer) Close() {
	if iss == nil {
		return
	}
	if iss.audit != nil {
		iss.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (iss *Issuer) AuditDropped() uint64 {
	if iss == nil || iss.audit == nil {
		return 0
	}
	return iss.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters and histograms.
func (iss *Issuer) MetricsSnapshot() MetricsSnapshot {
	if iss == nil || iss.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return iss.metrics.SnapshotNow()
}

// AccessTokenTTL reports the configured access-token lifetime.
func (iss *Issuer) AccessTokenTTL() time.Duration {
	return iss.config.JWT.AccessTTL
}

func (iss *Issuer) metricInc(id MetricID) {
	if iss == nil || iss.metrics == nil {
		return
	}
	iss.metrics.Inc(id)
}

// Login authenticates an email/password pair and mints a fresh token pair.
// Unknown email and wrong password both return [ErrInvalidCredentials]; a
// dummy hash verification runs on unknown email so the two cases are not
// distinguishable by timing.
func (iss *Issuer) Login(ctx context.Context, email, password string) (*Credentials, error) {
	return iss.loginInternal(ctx, email, password, false)
}

// LoginRemembered is Login with the extended "remember me" session lifetime.
func (iss *Issuer) LoginRemembered(ctx context.Context, email, password string) (*Credentials, error) {
	return iss.loginInternal(ctx, email, password, true)
}

func (iss *Issuer) loginThrottleEnabled() bool {
	return iss.rateLimiter != nil &&
		(iss.config.Security.EnableLoginThrottle || iss.config.Security.EnableIPThrottle)
}

func (iss *Issuer) loginInternal(ctx context.Context, email, password string, remembered bool) (*Credentials, error) {
	if iss == nil || iss.passwordHash == nil {
		return nil, ErrIssuerNotReady
	}
	ip := clientIPFromContext(ctx)

	if iss.loginThrottleEnabled() {
		if err := iss.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			if !errors.Is(err, rate.ErrRateLimited) {
				// Limiter infrastructure failure, not an exhausted budget.
				iss.metricInc(MetricLoginFailure)
				iss.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, func() map[string]string {
					return map[string]string{
						"identifier": email,
						"reason":     "limiter_check_failed",
					}
				})
				return nil, err
			}
			iss.metricInc(MetricLoginRateLimited)
			iss.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			iss.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"identifier": email,
				}
			})
			return nil, ErrLoginRateLimited
		}
	}

	if email == "" || password == "" {
		iss.recordLoginFailure(ctx, email, ip, "", "empty_input")
		return nil, ErrInvalidCredentials
	}

	user, err := iss.userProvider.GetUserByEmail(email)
	if err != nil {
		// Level timing against the password-mismatch path.
		_, _ = iss.passwordHash.Verify(password, iss.dummyHash)
		iss.recordLoginFailure(ctx, email, ip, "", "user_not_found")
		return nil, ErrInvalidCredentials
	}

	ok, err := iss.passwordHash.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		iss.recordLoginFailure(ctx, email, ip, user.UserID, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	if iss.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := iss.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := iss.passwordHash.Hash(password); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := iss.userProvider.UpdatePasswordHash(user.UserID, upgradedHash); err != nil {
					log.Print("sessionauth: password hash upgrade update failed")
				}
			} else {
				log.Print("sessionauth: password hash upgrade generation failed")
			}
		}
	}
	password = ""

	if max := iss.config.Session.MaxSessionsPerUser; max > 0 {
		count, err := iss.sessionStore.ActiveSessionCount(ctx, user.UserID)
		if err != nil {
			iss.metricInc(MetricLoginFailure)
			iss.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", err, func() map[string]string {
				return map[string]string{
					"identifier": email,
					"reason":     "session_count_failed",
				}
			})
			return nil, err
		}
		if count >= max {
			iss.metricInc(MetricLoginFailure)
			iss.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, "", ErrSessionLimitExceeded, func() map[string]string {
				return map[string]string{
					"identifier": email,
					"reason":     "session_limit",
				}
			})
			return nil, ErrSessionLimitExceeded
		}
	}

	creds, sessionID, err := iss.mintCredentials(ctx, user, remembered)
	if err != nil {
		iss.metricInc(MetricLoginFailure)
		iss.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, sessionID, err, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     "mint_failed",
			}
		})
		return nil, err
	}

	if iss.loginThrottleEnabled() {
		// Limiter reset is best-effort; a leftover counter only shortens the
		// window for subsequent failures.
		if err := iss.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
			log.Print("sessionauth: login limiter reset failed")
		}
	}

	iss.metricInc(MetricSessionCreated)
	iss.metricInc(MetricLoginSuccess)
	iss.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"identifier": email,
		}
	})

	return creds, nil
}

func (iss *Issuer) recordLoginFailure(ctx context.Context, email, ip, userID, reason string) {
	if iss.loginThrottleEnabled() {
		if err := iss.rateLimiter.IncrementLogin(ctx, email, ip); err != nil {
			log.Print("sessionauth: login limiter increment failed")
		}
	}
	iss.metricInc(MetricLoginFailure)
	iss.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": email,
			"reason":     reason,
		}
	})
}

// mintCredentials creates a new session row and issues the token pair for it.
func (iss *Issuer) mintCredentials(ctx context.Context, user UserRecord, remembered bool) (*Credentials, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, "", err
	}
	sessionID := sid.String()

	refreshSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, sessionID, err
	}

	now := time.Now()
	lifetime := iss.sessionLifetime(remembered)

	sess := &session.Session{
		SessionID:   sessionID,
		UserID:      user.UserID,
		Email:       user.Email,
		Role:        user.Role,
		RefreshHash: internal.HashRefreshSecret(refreshSecret),
		Remembered:  remembered,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}

	if err := iss.sessionStore.Save(ctx, sess, lifetime); err != nil {
		return nil, sessionID, err
	}

	access, err := iss.tokenManager.Sign(user.UserID, user.Role, sessionID)
	if err != nil {
		return nil, sessionID, err
	}

	refresh, err := internal.EncodeRefreshToken(sessionID, refreshSecret)
	if err != nil {
		return nil, sessionID, err
	}

	return &Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    iss.tokenManager.TTL(),
		User: UserInfo{
			UserID: user.UserID,
			Email:  user.Email,
			Role:   user.Role,
		},
	}, sessionID, nil
}

// Refresh consumes a refresh token and, when it matches the live session
// state, rotates it: the old token is dead the instant the new pair exists.
// A token that decodes but does not match the stored hash is treated as
// replay — the whole session lineage is revoked and [ErrRefreshReuse] is
// returned. The new access token always carries the user's current role.
func (iss *Issuer) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	if iss == nil || iss.sessionStore == nil {
		return nil, ErrIssuerNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		iss.metricInc(MetricRefreshFailure)
		iss.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return nil, ErrRefreshInvalid
	}

	if iss.rateLimiter != nil {
		if err := iss.rateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			if !errors.Is(err, rate.ErrRateLimited) {
				iss.metricInc(MetricRefreshFailure)
				iss.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
					return map[string]string{
						"reason": "limiter_check_failed",
					}
				})
				return nil, err
			}
			iss.metricInc(MetricRefreshRateLimited)
			iss.emitAudit(ctx, auditEventRefreshRateLimited, false, "", sessionID, ErrRefreshRateLimited, nil)
			iss.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{
					"session_id": sessionID,
				}
			})
			return nil, ErrRefreshRateLimited
		}
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		iss.metricInc(MetricRefreshFailure)
		iss.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "next_secret_generation",
			}
		})
		return nil, err
	}

	sess, err := iss.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			iss.metricInc(MetricRefreshReuseDetected)
			iss.metricInc(MetricSessionInvalidated)
			if iss.config.Session.ReplayTracking {
				if trackErr := iss.sessionStore.TrackReplayAnomaly(ctx, sessionID, iss.sessionLifetime(false)); trackErr != nil {
					log.Print("sessionauth: replay anomaly tracking failed")
				}
			}
			iss.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sessionID, ErrRefreshReuse, nil)
			return nil, ErrRefreshReuse
		case errors.Is(err, redis.Nil):
			iss.metricInc(MetricRefreshFailure)
			iss.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrSessionNotFound, func() map[string]string {
				return map[string]string{
					"reason": "session_not_found",
				}
			})
			return nil, ErrSessionNotFound
		default:
			iss.metricInc(MetricRefreshFailure)
			iss.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
				return map[string]string{
					"reason": "rotate_failed",
				}
			})
			return nil, err
		}
	}

	// Privilege changes propagate at the refresh boundary: the new access
	// token is minted from the provider's current record, not the session
	// snapshot taken at login.
	user, err := iss.userProvider.GetUserByID(sess.UserID)
	if err != nil {
		_ = iss.sessionStore.Delete(ctx, sess.SessionID)
		iss.metricInc(MetricSessionInvalidated)
		iss.metricInc(MetricRefreshFailure)
		iss.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, ErrUserNotFound, func() map[string]string {
			return map[string]string{
				"reason": "user_not_found",
			}
		})
		return nil, ErrUserNotFound
	}

	if user.Role != sess.Role || user.Email != sess.Email {
		sess.Role = user.Role
		sess.Email = user.Email
		// Drift persistence is best-effort; the minted token already carries
		// the current record, and the next refresh retries the write.
		if err := iss.sessionStore.Update(ctx, sess); err != nil {
			log.Print("sessionauth: session role update failed")
		}
	}

	access, err := iss.tokenManager.Sign(user.UserID, user.Role, sess.SessionID)
	if err != nil {
		iss.metricInc(MetricRefreshFailure)
		iss.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID, sess.SessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "issue_access_failed",
			}
		})
		return nil, err
	}

	refresh, err := internal.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		iss.metricInc(MetricRefreshFailure)
		iss.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID, sess.SessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "encode_refresh_failed",
			}
		})
		return nil, err
	}

	iss.metricInc(MetricRefreshSuccess)
	iss.emitAudit(ctx, auditEventRefreshSuccess, true, user.UserID, sess.SessionID, nil, nil)

	return &Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    iss.tokenManager.TTL(),
		User: UserInfo{
			UserID: user.UserID,
			Email:  user.Email,
			Role:   user.Role,
		},
	}, nil
}

// ValidateAccess validates tokenStr using the configured validation mode.
func (iss *Issuer) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	return iss.Validate(ctx, tokenStr, ModeInherit)
}

// Validate checks an access token and returns the authenticated identity.
// Every failure — malformed, forged, expired, or revoked — surfaces as
// [ErrUnauthorized]; callers never learn which check rejected the token.
//
// ModeJWTOnly validates signature and expiry with no Redis round trip.
// ModeStrict additionally requires the originating session to still exist;
// Redis outages fail closed in that mode.
func (iss *Issuer) Validate(ctx context.Context, tokenStr string, mode ValidationMode) (*AuthResult, error) {
	if iss == nil || iss.tokenManager == nil {
		return nil, ErrIssuerNotReady
	}
	if iss.metrics != nil && iss.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			iss.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := iss.tokenManager.Verify(tokenStr)
	if err != nil {
		return nil, ErrUnauthorized
	}

	effectiveMode, err := iss.resolveMode(mode)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		UserID:    claims.UserID(),
		Role:      claims.Role,
		SessionID: claims.SID,
	}

	if effectiveMode == ModeJWTOnly {
		return result, nil
	}

	sess, err := iss.sessionStore.GetReadOnly(ctx, claims.SID)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if sess.UserID != claims.UserID() {
		return nil, ErrUnauthorized
	}

	return result, nil
}

func (iss *Issuer) resolveMode(mode ValidationMode) (ValidationMode, error) {
	if mode == ModeInherit {
		mode = iss.config.ValidationMode
	}
	switch mode {
	case ModeJWTOnly, ModeStrict:
		return mode, nil
	default:
		return 0, ErrInvalidValidationMode
	}
}

// Logout revokes the session a refresh token belongs to. It is idempotent:
// a token whose session is already gone, or that does not match the stored
// hash, results in no action and no error. The refresh token is required so
// that possession, not just knowledge of a session ID, authorizes revocation.
func (iss *Issuer) Logout(ctx context.Context, refreshToken string) error {
	if iss == nil || iss.sessionStore == nil {
		return ErrIssuerNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		iss.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return ErrRefreshInvalid
	}

	sess, err := iss.sessionStore.GetReadOnly(ctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		iss.emitAudit(ctx, auditEventLogoutSession, false, "", sessionID, err, nil)
		return err
	}

	providedHash := internal.HashRefreshSecret(providedSecret)
	if subtle.ConstantTimeCompare(providedHash[:], sess.RefreshHash[:]) != 1 {
		// Holding a stale token from a rotated lineage does not authorize
		// revoking the live session.
		return nil
	}

	if err := iss.sessionStore.Delete(ctx, sessionID); err != nil {
		iss.emitAudit(ctx, auditEventLogoutSession, false, sess.UserID, sessionID, err, nil)
		return err
	}

	iss.metricInc(MetricLogout)
	iss.metricInc(MetricSessionInvalidated)
	iss.emitAudit(ctx, auditEventLogoutSession, true, sess.UserID, sessionID, nil, nil)
	return nil
}

// LogoutByAccessToken revokes the session named by a valid access token's
// sid claim. Used by the HTTP layer for authenticated logout.
func (iss *Issuer) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	claims, err := iss.tokenManager.Verify(tokenStr)
	if err != nil {
		iss.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "invalid_access_token",
			}
		})
		return ErrTokenInvalid
	}

	err = iss.sessionStore.Delete(ctx, claims.SID)
	if err == nil {
		iss.metricInc(MetricLogout)
		iss.metricInc(MetricSessionInvalidated)
	}
	iss.emitAudit(ctx, auditEventLogoutSession, err == nil, claims.UserID(), claims.SID, err, nil)
	return err
}

// LogoutAll revokes every live session belonging to userID.
func (iss *Issuer) LogoutAll(ctx context.Context, userID string) error {
	if iss == nil || iss.sessionStore == nil {
		return ErrIssuerNotReady
	}

	err := iss.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		iss.metricInc(MetricLogoutAll)
		iss.metricInc(MetricSessionInvalidated)
	}
	iss.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

func (iss *Issuer) sessionLifetime(remembered bool) time.Duration {
	lifetime := iss.config.Session.AbsoluteLifetime
	if remembered && iss.config.Session.RememberMeLifetime > lifetime {
		lifetime = iss.config.Session.RememberMeLifetime
	}
	if iss.config.JWT.RefreshTTL > 0 && iss.config.JWT.RefreshTTL < lifetime {
		return iss.config.JWT.RefreshTTL
	}
	return lifetime
}

// Me validates an access token and returns the current provider record for
// its subject, for identity endpoints. Token failures and missing users both
// surface as [ErrUnauthorized].
func (iss *Issuer) Me(ctx context.Context, tokenStr string) (*UserInfo, error) {
	res, err := iss.ValidateAccess(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	user, err := iss.userProvider.GetUserByID(res.UserID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return &UserInfo{
		UserID: user.UserID,
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}
