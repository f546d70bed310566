package sessionauth

import "errors"

var (
	// ErrUnauthorized is returned by Validate for every token failure.
	// Callers never learn whether the token was malformed, forged, or stale.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a user record disappears mid-lifecycle.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailInUse is returned by Register for duplicate email addresses.
	ErrEmailInUse = errors.New("email already in use")
	// ErrWeakPassword is returned by Register when the password fails policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrLoginRateLimited is returned when the login attempt budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when the per-session refresh budget is spent.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is returned for refresh tokens that do not decode or
	// reference no live session.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when an already-consumed refresh token is
	// presented. The session lineage is revoked before this error surfaces.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned when a session was revoked or expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLimitExceeded is returned at login when the per-user session
	// cap is reached.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	// ErrTokenInvalid is returned for unusable access tokens outside Validate.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrIssuerNotReady guards calls on a partially constructed Issuer.
	ErrIssuerNotReady = errors.New("issuer not initialized")
	// ErrProviderDuplicateEmail is the sentinel UserProvider implementations
	// return from CreateUser for duplicate emails.
	ErrProviderDuplicateEmail = errors.New("provider duplicate email")
	// ErrSessionInvalidationFailed is returned when revocation could not be completed.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrInvalidValidationMode is returned for unknown validation modes.
	ErrInvalidValidationMode = errors.New("invalid validation mode")
)
