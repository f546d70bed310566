// Package audit implements async event dispatching for security-relevant
// session lifecycle operations.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — structured audit record with timestamp, type, user, session, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit — that responsibility belongs to the Issuer.
//
// # What this package must NOT do
//
//   - Block request paths when DropIfFull is set.
//   - Be imported outside the sessionauth module.
package audit
