// Package api is the typed HTTP client for the remote authentication service.
//
// Every endpoint response is decoded once, at this boundary, into an explicit Go
// type. Non-OK replies become [*Error] carrying the server's message; network,
// timeout and decode problems are wrapped with [ErrTransport]. Login returns one of
// two tagged outcomes, [LoginSucceeded] or [LoginNeedsVerification].
//
// # What this package must NOT do
//
//   - Persist tokens or hold session state.
//   - Retry requests. A verification token is consumed exactly once.
package api
