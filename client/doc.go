// Package client owns the consuming side of a token session: it holds the
// access token in memory, keeps the refresh token in a pluggable vault,
// renews proactively before expiry, and dedupes concurrent reactive
// refreshes through a single flight.
//
// The [Coordinator] is constructed with everything it needs — an [AuthAPI]
// implementation and optionally a [TokenVault] — and owns its session state
// explicitly. There is no package-level session and no runtime callback
// registration.
//
// [Transport] adapts a Coordinator into an [net/http.RoundTripper] that
// attaches the bearer token and, on a 401, joins the shared refresh and
// retries the request once.
package client
