package flows

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authsession/api"
)

var (
	errRejected = errors.New("rejected")
	errNotReady = errors.New("not ready")
)

func accountDeps() AccountDeps {
	return AccountDeps{
		Errors: AccountErrors{
			NotReady:     errNotReady,
			Rejected:     errRejected,
			Transport:    errNet,
			MissingToken: errMissing,
		},
	}
}

func TestRunPasswordLoginRoutesOutcome(t *testing.T) {
	deps := accountDeps()
	var signedIn string
	var pending api.LoginNeedsVerification
	deps.SignIn = func(_ context.Context, token string, _ api.User) error {
		signedIn = token
		return nil
	}
	deps.RememberPending = func(p api.LoginNeedsVerification) { pending = p }

	deps.Login = func(context.Context, api.Credentials) (api.LoginOutcome, error) {
		return api.LoginSucceeded{Token: "jwt1", User: api.User{ID: "u1"}}, nil
	}
	if _, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps); err != nil || signedIn != "jwt1" {
		t.Fatalf("expected sign in, got %v %q", err, signedIn)
	}

	signedIn = ""
	deps.Login = func(context.Context, api.Credentials) (api.LoginOutcome, error) {
		return api.LoginNeedsVerification{VerificationToken: "v1", Email: "a@b.co"}, nil
	}
	if _, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if signedIn != "" || pending.VerificationToken != "v1" {
		t.Fatalf("expected pending only, got %q %+v", signedIn, pending)
	}
}

func TestRunPasswordLoginRejected(t *testing.T) {
	deps := accountDeps()
	deps.SignIn = func(context.Context, string, api.User) error { return nil }
	deps.Login = func(context.Context, api.Credentials) (api.LoginOutcome, error) {
		return nil, &api.Error{Status: 401}
	}

	_, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps)
	if !errors.Is(err, errRejected) || err.Error() != LoginFailedMessage {
		t.Fatalf("unexpected error %v", err)
	}
	if _, ok := api.AsError(err); !ok {
		t.Fatal("api error must stay reachable")
	}
}

func TestRunPasswordLoginTransportAndCancel(t *testing.T) {
	deps := accountDeps()
	deps.SignIn = func(context.Context, string, api.User) error { return nil }

	deps.Login = func(context.Context, api.Credentials) (api.LoginOutcome, error) {
		return nil, errors.New("dial tcp: refused")
	}
	if _, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps); !errors.Is(err, errNet) {
		t.Fatalf("expected transport error, got %v", err)
	}

	deps.Login = func(context.Context, api.Credentials) (api.LoginOutcome, error) {
		return nil, context.Canceled
	}
	if _, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunResetPasswordRequiresToken(t *testing.T) {
	deps := accountDeps()
	deps.ResetPassword = func(context.Context, string, string) (string, error) {
		t.Fatal("unexpected call")
		return "", nil
	}
	if _, err := RunResetPassword(context.Background(), "", "pw", deps); !errors.Is(err, errMissing) {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestAccountFlowsNotReady(t *testing.T) {
	deps := accountDeps()
	if _, err := RunRegister(context.Background(), api.Registration{}, deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := RunForgotPassword(context.Background(), "a@b.co", deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if _, err := RunPasswordLogin(context.Background(), api.Credentials{}, deps); !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
