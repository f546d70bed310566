// Package sessionauth implements the session token lifecycle for services
// that authenticate browser and API clients with short-lived JWT access
// tokens and single-use rotating refresh tokens.
//
// # Architecture
//
// The [Issuer] is the server-side authority: it registers accounts, verifies
// credentials, mints token pairs, rotates refresh tokens atomically, and
// revokes sessions. Access tokens are validated statelessly (see the token
// subpackage); refresh state lives in Redis (see the session subpackage).
// The consuming side — keeping a client authenticated across expiry without
// user involvement — is implemented by the client subpackage.
//
// # Usage
//
//	issuer, err := sessionauth.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithUserProvider(provider).
//		Build()
//
// User persistence is out of scope: callers implement [UserProvider] against
// their own database.
//
// # Refresh rotation
//
// Every refresh consumes the presented token and issues a replacement in one
// atomic compare-and-swap. Presenting a consumed token is indistinguishable
// from theft and revokes the whole session lineage ([ErrRefreshReuse]).
package sessionauth
