package authsession

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/internal/flows"
)

// Client is the assembled lifecycle manager: one Session, one Verifier and the
// account operations around them. Build it with New().Build().
type Client struct {
	config   Config
	logger   *slog.Logger
	api      *api.Client
	session  *Session
	verifier *Verifier
	metrics  *Metrics
	audit    *auditDispatcher
	closeFn  func() error
	now      func() time.Time
	deps     flows.Deps

	pendingMu sync.Mutex
	pending   *PendingVerification
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// Verifier returns the verification engine.
func (c *Client) Verifier() *Verifier { return c.verifier }

// API returns the underlying service client.
func (c *Client) API() *api.Client { return c.api }

// Config returns a copy of the validated configuration.
func (c *Client) Config() Config { return c.config }

// Close flushes the audit dispatcher and releases any connection Build opened.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.audit != nil {
		c.audit.Close()
	}
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// AuditDropped reports audit events lost to a full buffer.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot copies the lifecycle counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// Initialize runs Session.Initialize.
func (c *Client) Initialize(ctx context.Context) error {
	return c.session.Initialize(ctx)
}

// Profile re-fetches the signed-in user with the stored token. A rejected
// token signs the session out, as on startup.
func (c *Client) Profile(ctx context.Context) (State, error) {
	if err := c.session.Refresh(ctx); err != nil {
		return State{}, err
	}
	return c.session.State(), nil
}

// Logout signs out locally.
func (c *Client) Logout(ctx context.Context) {
	c.clearPending()
	c.session.Logout(ctx)
}

// Verify starts a verification attempt. See Verifier.Start.
func (c *Client) Verify(ctx context.Context, kind Kind, query url.Values, nav Navigator, observe func(AttemptSnapshot)) *Attempt {
	if kind == LoginVerify {
		c.clearPending()
	}
	return c.verifier.Start(ctx, kind, query, nav, observe)
}

// GuestOnly sends an already signed-in user to the dashboard. Guest pages
// (login, register, forgot password, login verification) call it on entry.
// It reports whether navigation happened.
func (c *Client) GuestOnly(nav Navigator) bool {
	if !c.session.IsAuthenticated() {
		return false
	}
	if nav != nil {
		nav.GoTo(c.config.Paths.Dashboard)
	}
	return true
}

// Pending returns the login waiting for email confirmation, if any.
func (c *Client) Pending() (PendingVerification, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending == nil {
		return PendingVerification{}, false
	}
	return *c.pending, true
}

func (c *Client) clearPending() {
	c.pendingMu.Lock()
	c.pending = nil
	c.pendingMu.Unlock()
}

// PasswordLogin validates the form and submits it. The outcome is either
// api.LoginSucceeded, after which the session is signed in, or
// api.LoginNeedsVerification, which is remembered as Pending and leaves the
// session untouched.
func (c *Client) PasswordLogin(ctx context.Context, email, password string) (api.LoginOutcome, error) {
	if err := ValidateLogin(email, password); err != nil {
		return nil, err
	}
	c.clearPending()
	return flows.RunPasswordLogin(ctx, api.Credentials{Email: email, Password: password}, c.deps.Account)
}

// Register validates the sign-up form and creates the account. It returns the
// service message; the session is not signed in.
func (c *Client) Register(ctx context.Context, name, email, password, confirm string) (string, error) {
	if err := ValidateRegistration(name, email, password, confirm); err != nil {
		return "", err
	}
	return flows.RunRegister(ctx, api.Registration{Name: name, Email: email, Password: password}, c.deps.Account)
}

// ForgotPassword asks the service to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := ValidateForgotPassword(email); err != nil {
		return "", err
	}
	return flows.RunForgotPassword(ctx, email, c.deps.Account)
}

// ResetPassword sets a new password using the "token" query parameter of a
// reset link.
func (c *Client) ResetPassword(ctx context.Context, query url.Values, password, confirm string) (string, error) {
	token := query.Get("token")
	if token == "" {
		return "", ErrMissingToken
	}
	if err := ValidatePasswordReset(password, confirm); err != nil {
		return "", err
	}
	return flows.RunResetPassword(ctx, token, password, c.deps.Account)
}

func (c *Client) accountDeps() flows.AccountDeps {
	return flows.AccountDeps{
		Login:          c.api.Login,
		Register:       c.api.Register,
		ForgotPassword: c.api.ForgotPassword,
		ResetPassword:  c.api.ResetPassword,
		SignIn:         c.session.Login,
		RememberPending: func(o api.LoginNeedsVerification) {
			c.pendingMu.Lock()
			c.pending = &PendingVerification{
				VerificationToken: o.VerificationToken,
				Email:             o.Email,
				RequestedAt:       c.now(),
			}
			c.pendingMu.Unlock()
			c.logger.Info("login requires email verification", slog.String("email", o.Email))
		},
		MetricInc: func(id int) { c.metrics.Inc(MetricID(id)) },
		EmitAudit: func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string) {
			c.audit.record(ctx, event, success, auditFields{userID: userID, err: err, metadata: metadata})
		},
		Metrics: flows.AccountMetrics{
			LoginSuccess:              int(MetricPasswordLoginSuccess),
			LoginVerificationRequired: int(MetricPasswordLoginVerificationRequired),
			LoginFailure:              int(MetricPasswordLoginFailure),
			TransportFailure:          int(MetricTransportFailure),
		},
		Errors: flows.AccountErrors{
			NotReady:     ErrNotReady,
			Rejected:     ErrRejected,
			Transport:    ErrTransportFailure,
			MissingToken: ErrMissingToken,
		},
		Events: flows.AccountEvents{
			PasswordLogin: AuditPasswordLogin,
			PasswordReset: AuditPasswordReset,
		},
	}
}
