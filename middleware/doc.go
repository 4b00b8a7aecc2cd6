// Package middleware gates HTTP routes on an authsession.Session.
//
// [Guard] reads Session.State on every request. Until the session is ready it
// answers 503, mirroring the loading screen an interactive client shows while
// Initialize runs. After that:
//
//   - [RequireSession] redirects signed-out visitors to the login path.
//   - [GuestOnly] redirects signed-in visitors to the dashboard.
//
// Admitted requests carry the state they were admitted with; see
// [StateFromContext]. The package never calls the service and never mutates
// the session.
package middleware
