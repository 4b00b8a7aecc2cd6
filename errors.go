package authsession

import "errors"

var (
	// ErrMissingToken is reported when a verification or reset link carries no token.
	ErrMissingToken = errors.New("missing verification token")
	// ErrInvalidOrExpiredToken is reported when the service rejects a one-time token.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrTransportFailure is reported when the service could not be reached or its
	// reply could not be decoded.
	ErrTransportFailure = errors.New("transport failure")
	// ErrStaleSession marks a stored token the service no longer accepts. It is
	// absorbed by Session and never returned to callers of Initialize or Refresh.
	ErrStaleSession = errors.New("stale session")
	// ErrInvalidInput is wrapped by *FieldErrors when local form checks fail.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRejected wraps server rejections of account operations (login, register,
	// forgot/reset password). The *api.Error is available through errors.As.
	ErrRejected = errors.New("request rejected")
	// ErrNotReady is returned when a component was constructed without a required dependency.
	ErrNotReady = errors.New("authsession not ready")
	// ErrAttemptClosed is returned by Attempt.Wait when the attempt was torn down
	// before its redirect fired.
	ErrAttemptClosed = errors.New("verification attempt closed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)
