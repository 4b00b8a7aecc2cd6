// Package flows contains the orchestrators behind Client and Verifier.
//
// Each flow function (ResolveVerification, RunPasswordLogin, RunResetPassword,
// etc.) accepts a typed dependency struct and returns a result. Flows decide
// outcomes, messages, countdowns and destinations; they never hold state
// between calls.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the service client, the session, metrics
// and audit through function fields. They do not own any of these resources.
// The session side effect of a verified login is returned as a Commit so the
// host can run it under its own liveness check.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authsession (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency fields.
package flows
