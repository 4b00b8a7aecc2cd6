package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/internal/fakeauth"
)

func startFake(t *testing.T) (*fakeauth.Service, []string) {
	t.Helper()
	svc := fakeauth.New()
	svc.AddAccount(fakeauth.Account{ID: 7, Name: "Grace", Email: "grace@example.com", Password: "Navy123", Verified: true})
	srv := svc.Start()
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "authclient.yaml")
	doc := "verification:\n  tick_interval: 5ms\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return svc, []string{"--config", cfgPath, "--api", srv.URL + "/api", "--credential", "memory", "--min-init", "0"}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	if code != 2 || !strings.Contains(stderr, "unknown command") {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
}

func TestRunLoginAndStatus(t *testing.T) {
	_, global := startFake(t)

	code, out, stderr := runCLI(t, append(global, "login", "--email", "grace@example.com", "--password", "Navy123")...)
	if code != 0 || !strings.Contains(out, "signed in as grace@example.com") {
		t.Fatalf("login exit %d out %q err %q", code, out, stderr)
	}

	// The memory backend does not outlive a command.
	code, out, _ = runCLI(t, append(global, "status")...)
	if code != 0 || strings.TrimSpace(out) != "signed out" {
		t.Fatalf("status exit %d out %q", code, out)
	}
}

func TestRunLoginValidation(t *testing.T) {
	_, global := startFake(t)
	code, _, stderr := runCLI(t, append(global, "login", "--email", "nope", "--password", "x")...)
	if code != 1 || !strings.Contains(stderr, "valid email") {
		t.Fatalf("unexpected exit %d: %s", code, stderr)
	}
}

func TestRunVerifyEmail(t *testing.T) {
	svc, global := startFake(t)
	svc.AddEmailToken("tok-1", "grace@example.com")

	code, out, stderr := runCLI(t, append(global, "verify-email", "--link", "https://app.example.com/verify-email?token=tok-1")...)
	if code != 0 {
		t.Fatalf("verify exit %d err %q", code, stderr)
	}
	for _, want := range []string{"Verifying your email...", "Email Verified Successfully!", "redirecting to /login"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestRunVerifyLoginMissingToken(t *testing.T) {
	_, global := startFake(t)
	code, out, _ := runCLI(t, append(global, "verify-login", "--link", "https://app.example.com/verify-login")...)
	if code != 1 || !strings.Contains(out, "Invalid Login Verification Link") {
		t.Fatalf("unexpected exit %d out %q", code, out)
	}
}

func TestLinkQuery(t *testing.T) {
	q, err := linkQuery("token=abc")
	if err != nil || q.Get("token") != "abc" {
		t.Fatalf("bare query: %v %v", q, err)
	}
	q, err = linkQuery("http://x/verify?token=def&next=1")
	if err != nil || q.Get("token") != "def" {
		t.Fatalf("full link: %v %v", q, err)
	}
	q, err = linkQuery("")
	if err != nil || len(q) != 0 {
		t.Fatalf("empty link: %v %v", q, err)
	}
}

func TestRouterStreamsVerification(t *testing.T) {
	svc := fakeauth.New()
	svc.AddAccount(fakeauth.Account{ID: 7, Name: "Grace", Email: "grace@example.com", Password: "Navy123", Verified: true})
	svc.AddLoginToken("lv-1", "grace@example.com", "session-grace")
	fake := svc.Start()
	defer fake.Close()

	cfg := authsession.DefaultConfig()
	cfg.API.BaseURL = fake.URL + "/api"
	cfg.Credential.Backend = authsession.CredentialMemory
	cfg.Session.MinInitDuration = 0
	cfg.Verification.TickInterval = 5 * time.Millisecond
	client, err := authsession.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	srv := httptest.NewServer(newRouter(client))
	defer srv.Close()

	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := noFollow.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("expected redirect to login, got %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = http.Get(srv.URL + "/verify-login?token=lv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	text := string(body)
	if !strings.Contains(text, "Login Verified Successfully!") || !strings.Contains(text, "redirect: /dashboard") {
		t.Fatalf("unexpected body %q", text)
	}
	if !client.Session().IsAuthenticated() {
		t.Fatal("expected signed-in session")
	}

	resp, err = noFollow.Get(srv.URL + "/verify-login?token=lv-1")
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("expected guest redirect, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "authsession_login_verify_success_total 1") {
		t.Fatalf("unexpected metrics %q", body)
	}
}
