package flows

import (
	"context"

	"github.com/MrEthical07/authsession/api"
)

// Verification kinds, mirrored from the root package.
const (
	KindEmail = iota
	KindLogin
)

// Terminal statuses produced by ResolveVerification.
const (
	StatusSuccess = iota + 1
	StatusError
)

// VerificationMessages holds the user-facing text for one kind.
type VerificationMessages struct {
	InvalidLink        string
	InvalidLinkDetails string
	Success            string
	SuccessDetails     string
	Failed             string
	FailedDetails      string
	Transport          string
	TransportDetails   string
	CommitFailed       string
}

// VerificationErrors carries host-level sentinel errors.
type VerificationErrors struct {
	MissingToken     error
	InvalidOrExpired error
	Transport        error
}

// VerificationMetrics maps outcomes to host counter ids.
type VerificationMetrics struct {
	Started      int
	Success      int
	Failure      int
	MissingToken int
	Transport    int
}

// VerificationDeps captures one verification attempt's dependencies.
type VerificationDeps struct {
	Kind int

	SuccessSeconds int
	ErrorSeconds   int
	// RejectSeconds is the countdown after the service refused the token.
	RejectSeconds int
	SuccessPath    string
	ErrorPath      string

	VerifyEmail func(context.Context, string) (string, error)
	VerifyLogin func(context.Context, string) (api.LoginSucceeded, error)
	// Login signs the verified user in. It is called from Commit, never from
	// ResolveVerification itself.
	Login func(context.Context, string, api.User) error

	MetricInc func(int)

	Messages VerificationMessages
	Metrics  VerificationMetrics
	Errors   VerificationErrors
}

// VerificationResult is the terminal outcome of one attempt.
type VerificationResult struct {
	Status      int
	Message     string
	Details     string
	Err         error
	Countdown   int
	Destination string
	// Called reports whether the service was contacted.
	Called bool
	// UserID is set for verified logins.
	UserID string

	// Commit applies the session side effect of a successful login
	// verification. The host runs it only if the attempt is still live, and
	// before publishing Success. Nil when there is nothing to apply.
	Commit func(context.Context) error
}

// EmailMessages returns the default text for email verification.
func EmailMessages() VerificationMessages {
	return VerificationMessages{
		InvalidLink:        "Invalid Email Verification Link",
		InvalidLinkDetails: "Please use the verification link sent to your email.",
		Success:            "Email Verified Successfully!",
		SuccessDetails:     "Your account has been activated. You can now log in to access your account.",
		Failed:             "Verification Failed",
		FailedDetails:      "This verification link is invalid or has expired.",
		Transport:          "Verification Failed",
		TransportDetails:   "Unable to verify your email. Please try again later.",
		CommitFailed:       "Verification Failed",
	}
}

// LoginMessages returns the default text for login verification.
func LoginMessages() VerificationMessages {
	return VerificationMessages{
		InvalidLink:        "Invalid Login Verification Link",
		InvalidLinkDetails: "Please use the verification link sent to your email.",
		Success:            "Login Verified Successfully!",
		SuccessDetails:     "Your login has been verified. You will be redirected to your dashboard.",
		Failed:             "Verification Failed",
		FailedDetails:      "This verification link is invalid or has expired.",
		Transport:          "Verification Error",
		TransportDetails:   "Unable to verify your login. Please try again.",
		CommitFailed:       "Verification Error",
	}
}

// LoadingMessage is shown while the service call is in flight.
func LoadingMessage(kind int) string {
	if kind == KindLogin {
		return "Verifying your login..."
	}
	return "Verifying your email..."
}

// ResolveVerification performs the single service call for token and classifies
// the reply. It never touches the session: a successful login verification
// returns a Commit for the host to run.
func ResolveVerification(ctx context.Context, token string, deps VerificationDeps) VerificationResult {
	normalizeVerificationDeps(&deps)
	deps.MetricInc(deps.Metrics.Started)

	if token == "" {
		deps.MetricInc(deps.Metrics.MissingToken)
		deps.MetricInc(deps.Metrics.Failure)
		return deps.failure(deps.Messages.InvalidLink, deps.Messages.InvalidLinkDetails, deps.Errors.MissingToken, false)
	}

	switch deps.Kind {
	case KindLogin:
		if deps.VerifyLogin == nil || deps.Login == nil {
			return deps.failure(deps.Messages.Transport, deps.Messages.TransportDetails, deps.Errors.Transport, false)
		}
		res, err := deps.VerifyLogin(ctx, token)
		if err != nil {
			return deps.classify(err)
		}
		// Success is counted once the session holds the token.
		out := deps.success()
		out.UserID = res.User.ID
		out.Commit = func(ctx context.Context) error {
			if err := deps.Login(ctx, res.Token, res.User); err != nil {
				return err
			}
			deps.MetricInc(deps.Metrics.Success)
			return nil
		}
		return out
	default:
		if deps.VerifyEmail == nil {
			return deps.failure(deps.Messages.Transport, deps.Messages.TransportDetails, deps.Errors.Transport, false)
		}
		if _, err := deps.VerifyEmail(ctx, token); err != nil {
			return deps.classify(err)
		}
		deps.MetricInc(deps.Metrics.Success)
		return deps.success()
	}
}

// CommitFailed converts a success whose session side effect failed into an
// error outcome.
func CommitFailed(res VerificationResult, err error, deps VerificationDeps) VerificationResult {
	normalizeVerificationDeps(&deps)
	deps.MetricInc(deps.Metrics.Failure)
	out := deps.failure(deps.Messages.CommitFailed, deps.Messages.TransportDetails, err, res.Called)
	out.UserID = res.UserID
	return out
}

func (deps VerificationDeps) classify(err error) VerificationResult {
	deps.MetricInc(deps.Metrics.Failure)
	if apiErr, ok := api.AsError(err); ok {
		out := deps.failure(deps.Messages.Failed, apiErr.MessageOr(deps.Messages.FailedDetails), deps.Errors.InvalidOrExpired, true)
		out.Countdown = deps.RejectSeconds
		return out
	}
	deps.MetricInc(deps.Metrics.Transport)
	return deps.failure(deps.Messages.Transport, deps.Messages.TransportDetails, deps.Errors.Transport, true)
}

func (deps VerificationDeps) success() VerificationResult {
	return VerificationResult{
		Status:      StatusSuccess,
		Message:     deps.Messages.Success,
		Details:     deps.Messages.SuccessDetails,
		Countdown:   deps.SuccessSeconds,
		Destination: deps.SuccessPath,
		Called:      true,
	}
}

func (deps VerificationDeps) failure(message, details string, err error, called bool) VerificationResult {
	return VerificationResult{
		Status:      StatusError,
		Message:     message,
		Details:     details,
		Err:         err,
		Countdown:   deps.ErrorSeconds,
		Destination: deps.ErrorPath,
		Called:      called,
	}
}

func normalizeVerificationDeps(deps *VerificationDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Messages == (VerificationMessages{}) {
		if deps.Kind == KindLogin {
			deps.Messages = LoginMessages()
		} else {
			deps.Messages = EmailMessages()
		}
	}
}
