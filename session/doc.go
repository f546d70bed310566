// Package session implements the Redis-backed refresh-session store.
//
// # Data model
//
// Each session row is a binary-encoded [Session] keyed by an opaque session
// ID, with a per-user index set ("<prefix>:u:<userID>") for bulk revocation.
// All keys, the index and replay counters included, live under the store's
// configured prefix, so stores with distinct prefixes never collide. Only the
// SHA-256 hash of the refresh secret is stored; the secret itself exists
// solely inside the refresh token held by the client.
//
// # Encoding
//
// The blob uses fixed offsets for every field the rotation script needs
// (refresh hash, expiry) so the Lua compare-and-swap can splice in a new
// hash without parsing variable-length fields:
//
//	[0]      schema version (1)
//	[1:33]   refresh secret hash
//	[33]     flags (bit 0: remembered)
//	[34:42]  created-at unix seconds, big endian
//	[42:50]  expires-at unix seconds, big endian
//	[50]     user ID length, then user ID
//	[...]    email length, then email
//	[...]    role length, then role
//
// # Rotation
//
// [Store.RotateRefreshHash] runs a Lua script that compares the stored hash
// against the caller's and swaps in the next hash in one atomic step. A
// mismatch deletes the row before returning: a replayed refresh token
// revokes the whole session lineage.
package session
