package authsession

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authsession/credential"
)

// ProfileFetcher resolves a bearer token to its user. *api.Client implements it.
type ProfileFetcher interface {
	Profile(ctx context.Context, bearer string) (User, error)
}

// SessionOptions configures NewSession. The zero value applies no floor, logs
// nothing and records no metrics.
type SessionOptions struct {
	MinInitDuration time.Duration
	Logger          *slog.Logger
	Metrics         *Metrics

	audit *auditDispatcher
	now   func() time.Time
}

// Session owns the signed-in identity: {currentUser, isAuthenticated,
// isInitializing}. It is the only writer of the credential store.
//
// Session is safe for concurrent use. Mutations of the credential slot are
// serialized under the session mutex.
type Session struct {
	store    credential.Store
	profiles ProfileFetcher

	minInit time.Duration
	logger  *slog.Logger
	metrics *Metrics
	audit   *auditDispatcher
	now     func() time.Time

	mu            sync.RWMutex
	user          *User
	authenticated bool
	phase         Phase
	// gen advances on every Login, Logout and resolve so a slow profile fetch
	// cannot overwrite a newer identity.
	gen uint64
}

// NewSession returns an uninitialized session over store.
func NewSession(store credential.Store, profiles ProfileFetcher, opts SessionOptions) *Session {
	s := &Session{
		store:    store,
		profiles: profiles,
		minInit:  opts.MinInitDuration,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		audit:    opts.audit,
		now:      opts.now,
	}
	if s.minInit < 0 {
		s.minInit = 0
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// State returns a snapshot. The User pointer refers to a private copy.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Authenticated: s.authenticated,
		Initializing:  s.phase != PhaseReady,
		Phase:         s.phase,
	}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Token returns the stored session token.
func (s *Session) Token(ctx context.Context) (string, bool, error) {
	if s == nil || s.store == nil {
		return "", false, ErrNotReady
	}
	return s.store.Load(ctx)
}

// Initialize resolves the stored token at process start. It never takes less
// than the configured minimum duration, whatever the outcome. Profile
// failures are absorbed: the token is cleared and the session ends signed out.
// The only error returned is ctx's, in which case nothing further is mutated.
func (s *Session) Initialize(ctx context.Context) error {
	if s == nil || s.store == nil || s.profiles == nil {
		return ErrNotReady
	}
	start := s.now()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	prev := s.phase
	s.phase = PhaseInitializing
	s.mu.Unlock()

	if err := s.resolve(ctx, gen); err != nil {
		s.abandonInit(prev)
		return err
	}

	if remaining := s.minInit - s.now().Sub(start); remaining > 0 {
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.abandonInit(prev)
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	if s.phase == PhaseInitializing {
		s.phase = PhaseReady
	}
	s.mu.Unlock()
	return nil
}

// abandonInit puts the phase back after a canceled Initialize so a later call
// starts over.
func (s *Session) abandonInit(prev Phase) {
	s.mu.Lock()
	if s.phase == PhaseInitializing {
		s.phase = prev
	}
	s.mu.Unlock()
}

// Refresh re-resolves the stored token on demand, without the minimum duration.
func (s *Session) Refresh(ctx context.Context) error {
	if s == nil || s.store == nil || s.profiles == nil {
		return ErrNotReady
	}
	s.metrics.Inc(MetricSessionRefresh)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.resolve(ctx, gen); err != nil {
		return err
	}

	s.mu.Lock()
	if s.phase == PhaseUninitialized {
		s.phase = PhaseReady
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) resolve(ctx context.Context, gen uint64) error {
	token, ok, err := s.store.Load(ctx)
	if err != nil {
		// An unreadable slot is treated as empty; it is not cleared.
		s.metrics.Inc(MetricCredentialStoreFailure)
		s.logger.WarnContext(ctx, "credential store load failed", slog.Any("error", err))
		ok = false
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return nil
		}
		s.user = nil
		s.authenticated = false
		s.metrics.Inc(MetricSessionInitAnonymous)
		s.logger.DebugContext(ctx, "no stored session")
		s.audit.record(ctx, AuditSessionInitialized, true, auditFields{
			metadata: func() map[string]string { return map[string]string{"authenticated": "false"} },
		})
		return nil
	}

	fetchStart := s.now()
	user, fetchErr := s.profiles.Profile(ctx, token)
	s.metrics.Observe(MetricProfileLatency, s.now().Sub(fetchStart))
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		// Superseded by Login/Logout while the fetch was in flight.
		return nil
	}

	if fetchErr != nil {
		stale := fmt.Errorf("%w: %v", ErrStaleSession, fetchErr)
		if err := s.store.Clear(ctx); err != nil {
			s.metrics.Inc(MetricCredentialStoreFailure)
			s.logger.WarnContext(ctx, "credential store clear failed", slog.Any("error", err))
		}
		s.user = nil
		s.authenticated = false
		s.metrics.Inc(MetricSessionStale)
		s.logger.InfoContext(ctx, "stored session no longer valid; signed out", slog.Any("error", fetchErr))
		s.audit.record(ctx, AuditSessionStale, false, auditFields{err: stale})
		return nil
	}

	u := user
	s.user = &u
	s.authenticated = true
	s.metrics.Inc(MetricSessionInitAuthenticated)
	s.logger.InfoContext(ctx, "session restored", slog.String("user_id", u.ID))
	s.audit.record(ctx, AuditSessionInitialized, true, auditFields{
		userID:   u.ID,
		metadata: func() map[string]string { return map[string]string{"authenticated": "true"} },
	})
	return nil
}

// Login persists token and signs user in. It makes no network call; the caller
// supplies an identity the service already issued.
func (s *Session) Login(ctx context.Context, token string, user User) error {
	if s == nil || s.store == nil {
		return ErrNotReady
	}
	if token == "" {
		return fmt.Errorf("%w: empty session token", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, token); err != nil {
		s.metrics.Inc(MetricCredentialStoreFailure)
		s.logger.ErrorContext(ctx, "credential store save failed", slog.Any("error", err))
		return err
	}
	s.gen++
	u := user
	s.user = &u
	s.authenticated = true
	if s.phase == PhaseUninitialized {
		s.phase = PhaseReady
	}

	s.metrics.Inc(MetricSessionLogin)
	s.logger.InfoContext(ctx, "signed in", slog.String("user_id", u.ID))
	s.audit.record(ctx, AuditSessionLogin, true, auditFields{userID: u.ID})
	return nil
}

// Logout clears the stored token and signs out. It never calls the service and
// always leaves the session signed out; store failures are only logged.
func (s *Session) Logout(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var userID string
	if s.user != nil {
		userID = s.user.ID
	}
	var clearErr error
	if s.store != nil {
		clearErr = s.store.Clear(ctx)
	}
	if clearErr != nil {
		s.metrics.Inc(MetricCredentialStoreFailure)
		s.logger.WarnContext(ctx, "credential store clear failed", slog.Any("error", clearErr))
	}

	s.gen++
	s.user = nil
	s.authenticated = false
	if s.phase == PhaseUninitialized {
		s.phase = PhaseReady
	}

	s.metrics.Inc(MetricSessionLogout)
	s.logger.InfoContext(ctx, "signed out")
	s.audit.record(ctx, AuditSessionLogout, clearErr == nil, auditFields{userID: userID, err: clearErr})
}
