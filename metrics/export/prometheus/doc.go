// Package prometheus renders sessionauth metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [sessionauth.Issuer] and exposes an
// [http.Handler] that renders every counter and histogram. Counter names are
// prefixed sessionauth_*_total; the single histogram is
// sessionauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate issuer state.
package prometheus
