package authsession

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/internal/fakeauth"
)

func buildTestClient(t *testing.T) (*fakeauth.Service, *Client) {
	t.Helper()

	svc, svcClient := newTestService(t)
	cfg := testConfig()
	cfg.API.BaseURL = svcClient.BaseURL()
	client, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return svc, client
}

func TestPasswordLoginSignsIn(t *testing.T) {
	_, client := buildTestClient(t)

	outcome, err := client.PasswordLogin(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("PasswordLogin failed: %v", err)
	}
	ok, isOK := outcome.(api.LoginSucceeded)
	if !isOK || ok.Token != "session-"+testEmail {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	st := client.Session().State()
	if !st.Authenticated || st.User.ID != "u1" {
		t.Fatalf("unexpected state %+v", st)
	}
	if client.MetricsSnapshot().Counters[MetricPasswordLoginSuccess] != 1 {
		t.Fatal("expected login success metric")
	}
}

func TestPasswordLoginNeedsVerificationLeavesSessionAlone(t *testing.T) {
	svc, client := buildTestClient(t)
	svc.AddAccount(fakeauth.Account{ID: 2, Email: "two@example.com", Password: testPassword, Verified: true, RequireEmail: true})

	outcome, err := client.PasswordLogin(context.Background(), "two@example.com", testPassword)
	if err != nil {
		t.Fatalf("PasswordLogin failed: %v", err)
	}
	need, ok := outcome.(api.LoginNeedsVerification)
	if !ok || need.VerificationToken != "lv-two@example.com" {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if client.Session().IsAuthenticated() {
		t.Fatal("pending verification must not sign in")
	}
	if _, ok, _ := client.Session().Token(context.Background()); ok {
		t.Fatal("pending verification must not store a token")
	}
	p, ok := client.Pending()
	if !ok || p.Email != "two@example.com" || p.VerificationToken != need.VerificationToken {
		t.Fatalf("unexpected pending %+v", p)
	}

	// Following the emailed link completes the login.
	a := client.Verify(context.Background(), LoginVerify, tokenQuery(need.VerificationToken), nil, nil)
	if err := waitAttempt(t, a); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !client.Session().IsAuthenticated() {
		t.Fatal("expected signed in after verification")
	}
	if _, ok := client.Pending(); ok {
		t.Fatal("expected pending cleared")
	}
}

func TestPasswordLoginRejectedCarriesServerMessage(t *testing.T) {
	_, client := buildTestClient(t)

	_, err := client.PasswordLogin(context.Background(), testEmail, "wrong-password")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	apiErr, ok := api.AsError(err)
	if !ok || apiErr.Message != "Invalid credentials" {
		t.Fatalf("expected api error, got %v", err)
	}
	if err.Error() != "Invalid credentials" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPasswordLoginFormChecksSkipNetwork(t *testing.T) {
	svc, client := buildTestClient(t)

	_, err := client.PasswordLogin(context.Background(), "not-an-email", "123")
	var fe FieldErrors
	if !errors.As(err, &fe) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe[FieldEmail] == "" || fe[FieldPassword] == "" {
		t.Fatalf("expected both fields flagged, got %v", fe)
	}
	if svc.Calls(fakeauth.RouteLogin) != 0 {
		t.Fatal("invalid form must not reach the service")
	}
}

func TestRegisterThenVerifyEmail(t *testing.T) {
	svc, client := buildTestClient(t)
	ctx := context.Background()

	msg, err := client.Register(ctx, "Grace", "grace@example.com", "Passw0rd", "Passw0rd")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if msg == "" {
		t.Fatal("expected service message")
	}
	if client.Session().IsAuthenticated() {
		t.Fatal("registration must not sign in")
	}

	_, err = client.Register(ctx, "Grace", "grace@example.com", "Passw0rd", "Passw0rd")
	if !errors.Is(err, ErrRejected) || err.Error() != "User already exists" {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	a := client.Verify(ctx, EmailVerify, tokenQuery("ev-grace@example.com"), nil, nil)
	if err := waitAttempt(t, a); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if acct, _ := svc.Account("grace@example.com"); !acct.Verified {
		t.Fatal("expected account verified")
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	svc, client := buildTestClient(t)
	ctx := context.Background()

	if _, err := client.ForgotPassword(ctx, testEmail); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}

	if _, err := client.ResetPassword(ctx, url.Values{}, "NewPass1", "NewPass1"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := client.ResetPassword(ctx, tokenQuery("rp-"+testEmail), "weak", "weak"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := client.ResetPassword(ctx, tokenQuery("rp-"+testEmail), "NewPass1", "NewPass1"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if acct, _ := svc.Account(testEmail); acct.Password != "NewPass1" {
		t.Fatal("expected password changed")
	}

	// One-time token.
	_, err := client.ResetPassword(ctx, tokenQuery("rp-"+testEmail), "NewPass2", "NewPass2")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected on reuse, got %v", err)
	}
}

func TestGuestOnlyRedirectsAuthenticated(t *testing.T) {
	_, client := buildTestClient(t)
	nav := &recordingNav{}

	if client.GuestOnly(nav) {
		t.Fatal("anonymous session must stay on guest page")
	}
	if _, err := client.PasswordLogin(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("PasswordLogin failed: %v", err)
	}
	if !client.GuestOnly(nav) {
		t.Fatal("expected redirect")
	}
	if got := nav.Paths(); len(got) != 1 || got[0] != "/dashboard" {
		t.Fatalf("unexpected navigation %v", got)
	}
}

func TestProfileRefreshSignsOutRevokedToken(t *testing.T) {
	_, client := buildTestClient(t)
	ctx := context.Background()

	if err := client.Session().Login(ctx, "revoked", User{ID: "u1"}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	st, err := client.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if st.Authenticated {
		t.Fatal("expected revoked token to sign out")
	}
}

func TestBuildWithRedisCredentialBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, svcClient := newTestService(t)
	cfg := testConfig()
	cfg.API.BaseURL = svcClient.BaseURL()
	cfg.Credential.Backend = CredentialRedis
	client, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	if _, err := client.PasswordLogin(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("PasswordLogin failed: %v", err)
	}
	got, err := mr.Get("authsession:token")
	if err != nil || got != "session-"+testEmail {
		t.Fatalf("expected token in redis, got %q %v", got, err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.API.BaseURL = "not a url"
	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
