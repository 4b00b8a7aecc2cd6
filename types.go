package authsession

import (
	"time"

	"github.com/MrEthical07/authsession/api"
)

// User is the identity owned by Session. It is replaced wholesale on login and
// refresh and cleared on logout.
type User = api.User

// Phase is the Session lifecycle position.
type Phase uint8

const (
	// PhaseUninitialized is the state before Initialize is first called.
	PhaseUninitialized Phase = iota
	// PhaseInitializing is set while Initialize resolves the stored token and its
	// minimum duration has not elapsed.
	PhaseInitializing
	// PhaseReady is set once the stored token has been resolved (or found absent).
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of Session.
type State struct {
	User          *User
	Authenticated bool
	// Initializing is true until the first Initialize completes, including
	// before it has been called.
	Initializing bool
	Phase        Phase
}

// Kind selects which verification flow an Attempt runs.
type Kind uint8

const (
	// EmailVerify confirms a newly registered email address.
	EmailVerify Kind = iota
	// LoginVerify completes a login that required an emailed confirmation.
	LoginVerify
)

func (k Kind) String() string {
	switch k {
	case EmailVerify:
		return "email_verify"
	case LoginVerify:
		return "login_verify"
	default:
		return "unknown"
	}
}

// Status is the Attempt state-machine position. Loading moves to exactly one of
// Success or Error and never leaves it.
type Status uint8

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Success or Error.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// AttemptSnapshot is a copy of an Attempt's observable fields.
type AttemptSnapshot struct {
	ID               string
	Kind             Kind
	Token            string
	Status           Status
	Message          string
	Details          string
	SecondsRemaining int
	// Destination is where the redirect goes once SecondsRemaining reaches zero.
	// Empty while loading.
	Destination string
	// Redirected is set once the navigation capability was invoked.
	Redirected bool
	// Err classifies Error outcomes: ErrMissingToken, ErrInvalidOrExpiredToken or
	// ErrTransportFailure.
	Err       error
	StartedAt time.Time
}

// PendingVerification is remembered after a password login that needs an emailed
// confirmation. It lives in memory only.
type PendingVerification struct {
	VerificationToken string
	Email             string
	RequestedAt       time.Time
}

// Navigator is the routing capability. The core calls GoTo and never routes itself.
type Navigator interface {
	GoTo(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) GoTo(path string) {
	f(path)
}
