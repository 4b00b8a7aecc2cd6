// Package authsession manages the client side of an account lifecycle against a
// remote authentication service: a persisted bearer token, the signed-in user
// derived from it, and the email and login verification flows that end in a
// timed redirect.
//
// A [Client] is assembled with [New] and [Builder.Build]. It owns one [Session]
// and one [Verifier]; both are safe to use from multiple goroutines.
//
// # Architecture boundaries
//
// The root package is the public surface: [Client], [Session], [Attempt],
// [Config] and their value types. Service I/O lives in api, token persistence in
// credential, countdowns in redirect, and the pure outcome rules of each flow in
// internal/flows. The package never routes; every redirect goes through the
// caller's [Navigator].
//
// # What this package must NOT do
//
//   - Deliver a verification snapshot or redirect after its Attempt is closed.
//   - Report a Session ready before [SessionConfig.MinInitDuration] has elapsed
//     on the first Initialize.
//   - Write verification tokens or bearer tokens into logs or audit events.
//   - Import any sub-package that re-imports authsession.
package authsession
