// Package internal contains helper utilities that are intentionally private to
// sessionauth, including secure random generation and refresh-token encoding.
//
// # Sub-packages
//
//   - audit — async event dispatch (Sink implementations)
//   - metrics — lock-free counters and latency histograms
//   - rate — core Redis-backed rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionauth API.
//   - Be imported by any package outside the sessionauth module.
package internal
