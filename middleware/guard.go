package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authsession"
)

// Mode selects which visitors a Guard lets through.
type Mode uint8

const (
	// ModePrivate admits signed-in visitors only.
	ModePrivate Mode = iota
	// ModeGuest admits signed-out visitors only.
	ModeGuest
)

// StateSource is implemented by *authsession.Session.
type StateSource interface {
	State() authsession.State
}

type stateContextKey struct{}

// StateFromContext returns the session state a Guard admitted the request with.
func StateFromContext(ctx context.Context) (authsession.State, bool) {
	st, ok := ctx.Value(stateContextKey{}).(authsession.State)
	return st, ok
}

// Guard gates a handler on the session. Requests that arrive before the session
// is ready get 503 so the caller can show a loading screen; rejected visitors
// are redirected to redirectTo with 303.
func Guard(session StateSource, mode Mode, redirectTo string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			st := session.State()
			if st.Phase != authsession.PhaseReady {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Loading...", http.StatusServiceUnavailable)
				return
			}

			admit := st.Authenticated
			if mode == ModeGuest {
				admit = !st.Authenticated
			}
			if !admit {
				http.Redirect(w, r, redirectTo, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), stateContextKey{}, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
