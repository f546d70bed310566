// Package token implements the stateless access-token signer and validator.
//
// # Design
//
// Access tokens are JWTs signed with HS256 or Ed25519. Verification is pure
// computation: signature check plus registered-claim validation, no I/O and
// no revocation lookup. Failures are collapsed into three sentinels so
// callers can distinguish garbage ([ErrMalformed]) from forgery
// ([ErrSignatureInvalid]) from staleness ([ErrExpired]) without parsing
// error strings.
//
// # What this package must NOT do
//
//   - Touch Redis or any other backend.
//   - Leak crypto library diagnostics to callers.
package token
