// Package fakeauth is an in-process stand-in for the remote authentication
// service, used by tests and by `authclient serve --fake`.
package fakeauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Account is a user the fake service knows about.
type Account struct {
	ID           any
	Name         string
	Email        string
	Password     string
	Verified     bool
	RequireEmail bool // login answers requiresVerification
	CreatedAt    time.Time
}

// Service holds the fake's state. All fields are guarded by mu.
type Service struct {
	mu sync.Mutex

	accounts      map[string]*Account // by email
	sessions      map[string]string   // session token -> email
	emailTokens   map[string]string   // email verification token -> email
	loginTokens   map[string]string   // login verification token -> email
	resetTokens   map[string]string   // reset token -> email
	sessionTokens map[string]string   // login verification token -> session token to issue

	calls map[string]int
	hold  map[string]chan struct{}
}

// New returns an empty fake service.
func New() *Service {
	return &Service{
		accounts:      make(map[string]*Account),
		sessions:      make(map[string]string),
		emailTokens:   make(map[string]string),
		loginTokens:   make(map[string]string),
		resetTokens:   make(map[string]string),
		sessionTokens: make(map[string]string),
		calls:         make(map[string]int),
		hold:          make(map[string]chan struct{}),
	}
}

// AddAccount registers an account.
func (s *Service) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	s.accounts[a.Email] = &a
}

// AddSession makes token a valid bearer credential for email.
func (s *Service) AddSession(token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = email
}

// AddEmailToken makes token a one-time email verification token for email.
func (s *Service) AddEmailToken(token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailTokens[token] = email
}

// AddLoginToken makes token a one-time login verification token that issues
// sessionToken for email.
func (s *Service) AddLoginToken(token, email, sessionToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginTokens[token] = email
	s.sessionTokens[token] = sessionToken
}

// AddResetToken makes token a one-time password reset token for email.
func (s *Service) AddResetToken(token, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTokens[token] = email
}

// Hold makes requests to route block until the returned release func is called.
func (s *Service) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls reports how many requests route received.
func (s *Service) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Account returns a copy of the account for email.
func (s *Service) Account(email string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// Route names used by Calls and Hold.
const (
	RouteLogin          = "login"
	RouteRegister       = "register"
	RouteVerifyEmail    = "verify"
	RouteVerifyLogin    = "verify-login"
	RouteForgotPassword = "forgot-password"
	RouteResetPassword  = "reset-password"
	RouteProfile        = "profile"
)

// Handler returns the service rooted at /api.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", s.track(RouteLogin, s.login)).Methods(http.MethodPost)
	auth.HandleFunc("/register", s.track(RouteRegister, s.register)).Methods(http.MethodPost)
	auth.HandleFunc("/verify/{token}", s.track(RouteVerifyEmail, s.verifyEmail)).Methods(http.MethodGet)
	auth.HandleFunc("/verify-login/{token}", s.track(RouteVerifyLogin, s.verifyLogin)).Methods(http.MethodGet)
	auth.HandleFunc("/forgot-password", s.track(RouteForgotPassword, s.forgotPassword)).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password/{token}", s.track(RouteResetPassword, s.resetPassword)).Methods(http.MethodPost)
	auth.HandleFunc("/profile", s.track(RouteProfile, s.profile)).Methods(http.MethodGet)
	return r
}

// Start serves the fake on a loopback listener. BaseURL is srv.URL + "/api".
func (s *Service) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

func (s *Service) track(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		hold := s.hold[route]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		next(w, r)
	}
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[in.Email]
	if !ok || a.Password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}
	if !a.Verified {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Please verify your email first"})
		return
	}
	if a.RequireEmail {
		token := "lv-" + a.Email
		s.loginTokens[token] = a.Email
		s.sessionTokens[token] = "session-" + a.Email
		writeJSON(w, http.StatusOK, map[string]any{
			"requiresVerification": true,
			"verificationToken":    token,
			"email":                a.Email,
		})
		return
	}

	token := "session-" + a.Email
	s.sessions[token] = a.Email
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": userJSON(a)})
}

func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[in.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "User already exists"})
		return
	}
	s.accounts[in.Email] = &Account{
		ID:        len(s.accounts) + 1,
		Name:      in.Name,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: time.Now().UTC(),
	}
	s.emailTokens["ev-"+in.Email] = in.Email
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Registration successful. Please check your email to verify your account."})
}

func (s *Service) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emailTokens[token]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid or expired verification token"})
		return
	}
	delete(s.emailTokens, token)
	if a, ok := s.accounts[email]; ok {
		a.Verified = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Email verified successfully"})
}

func (s *Service) verifyLogin(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.loginTokens[token]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid or expired login link"})
		return
	}
	delete(s.loginTokens, token)
	session := s.sessionTokens[token]
	delete(s.sessionTokens, token)
	if session == "" {
		session = "session-" + email
	}
	s.sessions[session] = email

	a, ok := s.accounts[email]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": session, "user": userJSON(a)})
}

func (s *Service) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.Email]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "No account with that email"})
		return
	}
	s.resetTokens["rp-"+in.Email] = in.Email
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset link sent"})
}

func (s *Service) resetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	var in struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.resetTokens[token]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid or expired reset token"})
		return
	}
	delete(s.resetTokens, token)
	if a, ok := s.accounts[email]; ok {
		a.Password = in.Password
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset successful"})
}

func (s *Service) profile(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "No token provided"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.sessions[header[len(prefix):]]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid token"})
		return
	}
	a, ok := s.accounts[email]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userJSON(a)})
}

func userJSON(a *Account) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"name":       a.Name,
		"email":      a.Email,
		"isVerified": a.Verified,
		"createdAt":  a.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		"updatedAt":  a.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
