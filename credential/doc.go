// Package credential persists the client's single session token.
//
// # Design
//
// A [Store] holds exactly one slot. Save overwrites it, Load reports whether it is
// occupied, and Clear empties it. Clear on an empty slot is a no-op. Backends are a
// JSON file ([FileStore]), process memory ([MemoryStore]) and a local Redis key
// ([RedisStore]).
//
// # Architecture boundaries
//
// This package owns persistence of the token only. It does NOT decide whether a token
// is still valid; the session layer resolves it against the remote service. [Inspect]
// reads JWT claims without verifying the signature and exists for display purposes.
//
// # What this package must NOT do
//
//   - Import authsession or api (no upward imports).
//   - Call the remote authentication service.
//   - Log token values.
package credential
