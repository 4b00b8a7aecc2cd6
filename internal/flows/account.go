package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authsession/api"
)

// AccountMetrics carries metric IDs used by password login.
type AccountMetrics struct {
	LoginSuccess              int
	LoginVerificationRequired int
	LoginFailure              int
	TransportFailure          int
}

// AccountErrors carries host-level sentinel errors used by account flows.
type AccountErrors struct {
	NotReady     error
	Rejected     error
	Transport    error
	MissingToken error
}

// AccountDeps captures password login, registration and password reset
// dependencies.
type AccountDeps struct {
	Login          func(context.Context, api.Credentials) (api.LoginOutcome, error)
	Register       func(context.Context, api.Registration) (string, error)
	ForgotPassword func(context.Context, string) (string, error)
	ResetPassword  func(context.Context, string, string) (string, error)

	// SignIn persists a completed login into the session.
	SignIn func(context.Context, string, api.User) error
	// RememberPending stores a login that still needs email confirmation.
	RememberPending func(api.LoginNeedsVerification)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, error, func() map[string]string)

	Metrics AccountMetrics
	Errors  AccountErrors
	Events  AccountEvents
}

// AccountEvents carries audit event names.
type AccountEvents struct {
	PasswordLogin string
	PasswordReset string
}

// Fallbacks used when the service rejects a request without a message.
const (
	LoginFailedMessage    = "Login failed"
	RegisterFailedMessage = "Registration failed"
	ForgotFailedMessage   = "Failed to send reset email"
	ResetFailedMessage    = "Failed to reset password"
)

// RunPasswordLogin submits credentials and routes the tagged outcome: a
// completed login goes to SignIn, one needing confirmation to RememberPending.
func RunPasswordLogin(ctx context.Context, creds api.Credentials, deps AccountDeps) (api.LoginOutcome, error) {
	normalizeAccountDeps(&deps)
	if deps.Login == nil || deps.SignIn == nil {
		return nil, deps.Errors.NotReady
	}

	outcome, err := deps.Login(ctx, creds)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		mapped := deps.mapError(err, LoginFailedMessage)
		deps.EmitAudit(ctx, deps.Events.PasswordLogin, false, "", mapped, func() map[string]string {
			return map[string]string{"email": creds.Email}
		})
		return nil, mapped
	}

	switch o := outcome.(type) {
	case api.LoginSucceeded:
		if err := deps.SignIn(ctx, o.Token, o.User); err != nil {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.PasswordLogin, false, o.User.ID, err, nil)
			return nil, err
		}
		deps.MetricInc(deps.Metrics.LoginSuccess)
		deps.EmitAudit(ctx, deps.Events.PasswordLogin, true, o.User.ID, nil, nil)
		return o, nil
	case api.LoginNeedsVerification:
		deps.MetricInc(deps.Metrics.LoginVerificationRequired)
		if deps.RememberPending != nil {
			deps.RememberPending(o)
		}
		deps.EmitAudit(ctx, deps.Events.PasswordLogin, true, "", nil, func() map[string]string {
			return map[string]string{"email": o.Email, "verification_required": "true"}
		})
		return o, nil
	default:
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, fmt.Errorf("%w: unexpected login outcome %T", deps.Errors.Transport, outcome)
	}
}

// RunRegister creates an account and returns the service's confirmation text.
func RunRegister(ctx context.Context, reg api.Registration, deps AccountDeps) (string, error) {
	normalizeAccountDeps(&deps)
	if deps.Register == nil {
		return "", deps.Errors.NotReady
	}
	msg, err := deps.Register(ctx, reg)
	if err != nil {
		return "", deps.mapError(err, RegisterFailedMessage)
	}
	return msg, nil
}

// RunForgotPassword asks the service to mail a reset link to email.
func RunForgotPassword(ctx context.Context, email string, deps AccountDeps) (string, error) {
	normalizeAccountDeps(&deps)
	if deps.ForgotPassword == nil {
		return "", deps.Errors.NotReady
	}
	msg, err := deps.ForgotPassword(ctx, email)
	if err != nil {
		return "", deps.mapError(err, ForgotFailedMessage)
	}
	return msg, nil
}

// RunResetPassword submits a new password for the one-time reset token.
func RunResetPassword(ctx context.Context, token, password string, deps AccountDeps) (string, error) {
	normalizeAccountDeps(&deps)
	if deps.ResetPassword == nil {
		return "", deps.Errors.NotReady
	}
	if token == "" {
		return "", deps.Errors.MissingToken
	}
	msg, err := deps.ResetPassword(ctx, token, password)
	if err != nil {
		mapped := deps.mapError(err, ResetFailedMessage)
		deps.EmitAudit(ctx, deps.Events.PasswordReset, false, "", mapped, nil)
		return "", mapped
	}
	deps.EmitAudit(ctx, deps.Events.PasswordReset, true, "", nil, nil)
	return msg, nil
}

// mapError keeps the *api.Error reachable through errors.As while tagging it
// with the host sentinel.
func (deps AccountDeps) mapError(err error, fallback string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if apiErr, ok := api.AsError(err); ok {
		return &RejectedError{Sentinel: deps.Errors.Rejected, API: apiErr, Message: apiErr.MessageOr(fallback)}
	}
	deps.MetricInc(deps.Metrics.TransportFailure)
	return fmt.Errorf("%w: %v", deps.Errors.Transport, err)
}

// RejectedError is a service rejection of an account request.
type RejectedError struct {
	Sentinel error
	API      *api.Error
	// Message is the server message or the operation's fallback.
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Unwrap() []error {
	return []error{e.Sentinel, e.API}
}

func normalizeAccountDeps(deps *AccountDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Errors.NotReady == nil {
		deps.Errors.NotReady = errors.New("flows: not ready")
	}
	if deps.Errors.Rejected == nil {
		deps.Errors.Rejected = errors.New("flows: rejected")
	}
	if deps.Errors.Transport == nil {
		deps.Errors.Transport = errors.New("flows: transport failure")
	}
	if deps.Errors.MissingToken == nil {
		deps.Errors.MissingToken = errors.New("flows: missing token")
	}
}
