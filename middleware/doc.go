// Package middleware exposes HTTP middleware adapters for JWT-only and strict
// authorization enforcement built on top of sessionauth.Issuer validation.
//
// # Guards
//
//   - [Guard] — enforcement mode inherited from Issuer config.
//   - [RequireJWTOnly] — stateless JWT verification, no Redis call.
//   - [RequireStrict] — JWT + session liveness verification.
//
// Each guard reads the Authorization header, calls Issuer.Validate, and injects
// the validated identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Issuer calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Issuer.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Issuer).
//   - Access Redis (Issuer handles I/O).
//   - Make authorization decisions beyond pass/reject from Issuer.Validate.
package middleware
