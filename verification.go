package authsession

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/internal/flows"
	"github.com/MrEthical07/authsession/redirect"
)

// VerificationAPI is the part of the service Verifier calls. *api.Client
// implements it.
type VerificationAPI interface {
	VerifyEmail(ctx context.Context, token string) (string, error)
	VerifyLogin(ctx context.Context, token string) (api.LoginSucceeded, error)
}

// Verifier starts verification attempts for one-time links.
type Verifier struct {
	session *Session
	api     VerificationAPI
	cfg     VerificationConfig
	paths   PathsConfig
	logger  *slog.Logger
	metrics *Metrics
	audit   *auditDispatcher
	now     func() time.Time
}

// VerifierOptions configures NewVerifier. Zero countdowns and paths fall back
// to DefaultConfig.
type VerifierOptions struct {
	Verification VerificationConfig
	Paths        PathsConfig
	Logger       *slog.Logger
	Metrics      *Metrics

	audit *auditDispatcher
}

// NewVerifier returns a Verifier that signs verified logins into session and
// calls svc once per attempt.
func NewVerifier(session *Session, svc VerificationAPI, opts VerifierOptions) *Verifier {
	def := DefaultConfig()
	v := &Verifier{
		session: session,
		api:     svc,
		cfg:     opts.Verification,
		paths:   opts.Paths,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		audit:   opts.audit,
		now:     time.Now,
	}
	if v.cfg == (VerificationConfig{}) {
		v.cfg = def.Verification
	}
	if v.cfg.TickInterval <= 0 {
		v.cfg.TickInterval = def.Verification.TickInterval
	}
	if v.paths.Login == "" {
		v.paths.Login = def.Paths.Login
	}
	if v.paths.Dashboard == "" {
		v.paths.Dashboard = def.Paths.Dashboard
	}
	if v.logger == nil {
		v.logger = slog.New(slog.DiscardHandler)
	}
	return v
}

// Attempt is one verification page visit. It starts in StatusLoading, reaches
// exactly one terminal status, counts down and then navigates once. Close
// tears it down at any point; nothing observable changes afterwards.
type Attempt struct {
	v       *Verifier
	kind    Kind
	nav     Navigator
	observe func(AttemptSnapshot)
	deps    flows.VerificationDeps

	// notifyMu orders observer calls; it is never held together with mu.
	notifyMu sync.Mutex

	mu        sync.Mutex
	snap      AttemptSnapshot
	closed    bool
	finished  bool
	scheduler *redirect.Scheduler
	result    error

	stopWatch func() bool
	done      chan struct{}
	doneOnce  sync.Once
}

// Start begins an attempt for kind using the "token" query parameter. nav
// receives the single redirect; observe, if non-nil, receives a snapshot on
// every change. Canceling ctx tears the attempt down like Close.
//
// The service call itself is not aborted by teardown: the one-time token may
// already be consumed, and the late reply is discarded.
func (v *Verifier) Start(ctx context.Context, kind Kind, query url.Values, nav Navigator, observe func(AttemptSnapshot)) *Attempt {
	token := query.Get("token")
	a := &Attempt{
		v:       v,
		kind:    kind,
		nav:     nav,
		observe: observe,
		done:    make(chan struct{}),
		snap: AttemptSnapshot{
			ID:        uuid.NewString(),
			Kind:      kind,
			Token:     token,
			Status:    StatusLoading,
			Message:   flows.LoadingMessage(flowKind(kind)),
			StartedAt: v.now(),
		},
	}
	a.deps = v.flowDeps(kind)

	v.logger.InfoContext(ctx, "verification started",
		slog.String("attempt_id", a.snap.ID),
		slog.String("kind", kind.String()),
		slog.Bool("has_token", token != ""),
	)
	v.audit.record(ctx, AuditVerificationStarted, true, auditFields{attemptID: a.snap.ID, kind: kind.String()})

	a.publish(a.Snapshot())
	a.stopWatch = context.AfterFunc(ctx, a.Close)

	callCtx := context.WithoutCancel(ctx)
	if token == "" {
		// No network call; resolve synchronously so the error is visible
		// immediately.
		a.resolve(callCtx, flows.ResolveVerification(callCtx, "", a.deps))
		return a
	}
	go func() {
		a.resolve(callCtx, flows.ResolveVerification(callCtx, token, a.deps))
	}()
	return a
}

func (v *Verifier) flowDeps(kind Kind) flows.VerificationDeps {
	cd := v.cfg.Countdown(kind)
	deps := flows.VerificationDeps{
		Kind:           flowKind(kind),
		SuccessSeconds: cd.SuccessSeconds,
		ErrorSeconds:   cd.ErrorSeconds,
		RejectSeconds:  cd.RejectSeconds,
		ErrorPath:      v.paths.Login,
		MetricInc:      func(id int) { v.metrics.Inc(MetricID(id)) },
		Errors: flows.VerificationErrors{
			MissingToken:     ErrMissingToken,
			InvalidOrExpired: ErrInvalidOrExpiredToken,
			Transport:        ErrTransportFailure,
		},
	}
	common := flows.VerificationMetrics{
		MissingToken: int(MetricVerifyMissingToken),
		Transport:    int(MetricTransportFailure),
	}
	if v.api != nil {
		deps.VerifyEmail = v.api.VerifyEmail
		deps.VerifyLogin = v.api.VerifyLogin
	}

	switch kind {
	case LoginVerify:
		deps.SuccessPath = v.paths.Dashboard
		deps.Messages = flows.LoginMessages()
		if v.session != nil {
			deps.Login = v.session.Login
		}
		common.Started = int(MetricLoginVerifyStarted)
		common.Success = int(MetricLoginVerifySuccess)
		common.Failure = int(MetricLoginVerifyFailure)
	default:
		deps.SuccessPath = v.paths.Login
		deps.Messages = flows.EmailMessages()
		common.Started = int(MetricEmailVerifyStarted)
		common.Success = int(MetricEmailVerifySuccess)
		common.Failure = int(MetricEmailVerifyFailure)
	}
	deps.Metrics = common
	return deps
}

func flowKind(k Kind) int {
	if k == LoginVerify {
		return flows.KindLogin
	}
	return flows.KindEmail
}

// resolve applies the terminal outcome if the attempt is still live and starts
// the countdown.
func (a *Attempt) resolve(ctx context.Context, res flows.VerificationResult) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		if res.Called {
			a.v.metrics.Inc(MetricAttemptDiscarded)
			a.v.logger.DebugContext(ctx, "discarded verification reply after teardown",
				slog.String("attempt_id", a.snap.ID))
		}
		return
	}

	if res.Commit != nil {
		if err := res.Commit(ctx); err != nil {
			res = flows.CommitFailed(res, err, a.deps)
		}
	}

	if res.Status == flows.StatusSuccess {
		a.snap.Status = StatusSuccess
	} else {
		a.snap.Status = StatusError
	}
	a.snap.Message = res.Message
	a.snap.Details = res.Details
	a.snap.Err = res.Err
	a.snap.SecondsRemaining = res.Countdown
	a.snap.Destination = res.Destination

	sched := redirect.New(a.v.cfg.TickInterval)
	a.scheduler = sched
	snap := a.snap
	a.mu.Unlock()

	attrs := []any{
		slog.String("attempt_id", snap.ID),
		slog.String("kind", snap.Kind.String()),
		slog.String("status", snap.Status.String()),
		slog.Int("countdown", snap.SecondsRemaining),
	}
	if snap.Err != nil {
		attrs = append(attrs, slog.Any("error", snap.Err))
		a.v.logger.WarnContext(ctx, "verification failed", attrs...)
	} else {
		a.v.logger.InfoContext(ctx, "verification succeeded", attrs...)
	}
	a.v.audit.record(ctx, AuditVerificationCompleted, snap.Status == StatusSuccess, auditFields{
		userID:    res.UserID,
		attemptID: snap.ID,
		kind:      snap.Kind.String(),
		err:       snap.Err,
	})

	a.publish(snap)

	if err := sched.Start(snap.SecondsRemaining, a.tick, a.expire); err != nil {
		a.v.logger.ErrorContext(ctx, "redirect scheduler start failed", slog.Any("error", err))
	}
}

func (a *Attempt) tick(remaining int) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.snap.SecondsRemaining = remaining
	snap := a.snap
	a.mu.Unlock()
	a.publish(snap)
}

func (a *Attempt) expire() {
	a.mu.Lock()
	if a.closed || a.finished {
		a.mu.Unlock()
		return
	}
	a.finished = true
	a.snap.SecondsRemaining = 0
	a.snap.Redirected = true
	snap := a.snap
	a.mu.Unlock()

	a.publish(snap)
	if a.nav != nil {
		a.nav.GoTo(snap.Destination)
	}
	a.v.metrics.Inc(MetricRedirectFired)
	a.v.logger.Info("verification redirect",
		slog.String("attempt_id", snap.ID),
		slog.String("destination", snap.Destination),
	)
	a.v.audit.record(context.Background(), AuditVerificationRedirected, snap.Status == StatusSuccess, auditFields{
		attemptID: snap.ID,
		kind:      snap.Kind.String(),
		metadata:  func() map[string]string { return map[string]string{"destination": snap.Destination} },
	})
	if a.stopWatch != nil {
		a.stopWatch()
	}
	a.finish(nil)
}

func (a *Attempt) publish(snap AttemptSnapshot) {
	if a.observe == nil {
		return
	}
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	// A teardown racing a tick must not deliver the tick afterwards.
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return
	}
	a.observe(snap)
}

// Snapshot returns the current observable state.
func (a *Attempt) Snapshot() AttemptSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Close tears the attempt down: the countdown stops, no redirect fires and
// any late service reply is discarded. Close is idempotent and a no-op once
// the redirect has fired.
func (a *Attempt) Close() {
	a.mu.Lock()
	if a.closed || a.finished {
		a.mu.Unlock()
		return
	}
	a.closed = true
	sched := a.scheduler
	id, kind := a.snap.ID, a.snap.Kind
	a.mu.Unlock()

	if sched != nil {
		sched.Cancel()
	}
	a.v.logger.Debug("verification closed", slog.String("attempt_id", id))
	a.v.audit.record(context.Background(), AuditVerificationClosed, true, auditFields{attemptID: id, kind: kind.String()})
	a.finish(ErrAttemptClosed)
}

func (a *Attempt) finish(err error) {
	a.doneOnce.Do(func() {
		a.mu.Lock()
		a.result = err
		a.mu.Unlock()
		close(a.done)
	})
}

// Done is closed once the redirect fired or the attempt was closed.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt finishes. It returns nil after the redirect
// fired, ErrAttemptClosed after teardown, or ctx's error.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.result
	case <-ctx.Done():
		return ctx.Err()
	}
}
