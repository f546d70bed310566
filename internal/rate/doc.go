// Package rate provides internal primitives used to build Redis-backed rate
// limit keys, errors, and limiter behavior for authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - rl:  — login per-identifier
//   - rli: — login per-IP
//   - rr:  — refresh per-session
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in the root package).
//   - Be imported outside the sessionauth module.
package rate
