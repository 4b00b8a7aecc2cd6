package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/internal/fakeauth"
	"github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/middleware"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "Demo123"
)

func cmdServe(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlags("serve", stderr)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	fake := fs.Bool("fake", false, "run against an in-process fake service backed by miniredis")
	if err := parse(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(g, stderr)
	if err != nil {
		return err
	}

	if *fake {
		svc := fakeauth.New()
		svc.AddAccount(fakeauth.Account{ID: 1, Name: "Demo User", Email: demoEmail, Password: demoPassword, Verified: true})
		svc.AddEmailToken("demo-email", demoEmail)
		svc.AddLoginToken("demo-login", demoEmail, "session-"+demoEmail)
		srv := svc.Start()
		defer srv.Close()

		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()

		cfg.API.BaseURL = srv.URL + "/api"
		cfg.Credential.Backend = authsession.CredentialRedis
		cfg.Credential.RedisAddr = mr.Addr()

		fmt.Fprintf(stdout, "fake service at %s, credentials in miniredis at %s\n", cfg.API.BaseURL, mr.Addr())
		fmt.Fprintf(stdout, "try http://%s/verify-email?token=demo-email or /verify-login?token=demo-login\n", *addr)
	}

	client, err := authsession.New().WithConfig(cfg).Build()
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		if err := client.Initialize(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Logger.Warn("session initialize failed", slog.String("error", err.Error()))
		}
	}()

	server := &http.Server{
		Addr:              *addr,
		Handler:           newRouter(client),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	fmt.Fprintf(stdout, "listening on %s\n", *addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newRouter(client *authsession.Client) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/verify-email", verifyHandler(client, authsession.EmailVerify)).Methods(http.MethodGet)
	r.Handle("/verify-login", middleware.GuestOnly(client)(verifyHandler(client, authsession.LoginVerify))).Methods(http.MethodGet)
	r.HandleFunc("/session", sessionHandler(client)).Methods(http.MethodGet)
	r.Handle("/dashboard", middleware.RequireSession(client)(profileHandler())).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.NewPrometheusExporter(client).Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return r
}

// verifyHandler streams one line per snapshot until the redirect fires. The
// client disconnecting cancels the request context, which tears the attempt
// down.
func verifyHandler(client *authsession.Client, kind authsession.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		flusher, _ := w.(http.Flusher)

		lines := make(chan string, 16)
		emit := func(line string) {
			select {
			case lines <- line:
			case <-r.Context().Done():
			}
		}

		observe := snapshotPrinter(lineWriter(emit))
		nav := authsession.NavigatorFunc(func(path string) {
			emit("redirect: " + path + "\n")
		})

		attempt := client.Verify(r.Context(), kind, r.URL.Query(), nav, observe)
		defer attempt.Close()

		for {
			select {
			case line := <-lines:
				_, _ = io.WriteString(w, line)
				if flusher != nil {
					flusher.Flush()
				}
			case <-attempt.Done():
				drain(w, flusher, lines)
				return
			}
		}
	}
}

func drain(w http.ResponseWriter, flusher http.Flusher, lines <-chan string) {
	for {
		select {
		case line := <-lines:
			_, _ = io.WriteString(w, line)
		default:
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
	}
}

type lineWriter func(string)

func (f lineWriter) Write(p []byte) (int, error) {
	f(string(p))
	return len(p), nil
}

func profileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := middleware.StateFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"user": st.User})
	}
}

func sessionHandler(client *authsession.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := client.Session().State()
		out := map[string]any{
			"phase":         st.Phase.String(),
			"authenticated": st.Authenticated,
		}
		if st.User != nil {
			out["user"] = st.User
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
