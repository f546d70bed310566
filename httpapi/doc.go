// Package httpapi carries the JSON/HTTP wire contract for the Issuer: a
// [Handler] that mounts the /auth endpoints on an [net/http.ServeMux], and a
// typed [Client] for the same contract.
//
// # Endpoints
//
//   - POST /auth/register — create an account, returns a token pair (201)
//   - POST /auth/login — authenticate, returns a token pair (200)
//   - POST /auth/refresh — rotate a refresh token (200)
//   - POST /auth/logout — revoke one session, idempotent (204)
//   - GET /auth/me — identity of the bearer token (200)
//
// Failure responses carry a stable error code only. Refresh-token reuse is
// deliberately indistinguishable from an invalid token on the wire; the
// distinction is recorded in the audit stream.
package httpapi
