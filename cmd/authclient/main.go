package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/credential"
)

const usage = `usage: authclient [global flags] <command> [flags]

commands:
  status            restore the stored session and print it
  profile           re-fetch the signed-in user
  login             sign in with --email and --password
  register          create an account
  forgot-password   request a reset link for --email
  reset-password    set a new password from a reset --link
  verify-email      confirm an email address from a --link
  verify-login      complete a pending login from a --link
  logout            forget the stored token
  serve             host verification pages and /metrics over HTTP
`

type globals struct {
	configPath string
	apiURL     string
	credential string
	redisAddr  string
	minInit    time.Duration
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globals
	fs := flag.NewFlagSet("authclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nglobal flags:")
		fs.PrintDefaults()
	}
	fs.StringVar(&g.configPath, "config", "", "YAML config file")
	fs.StringVar(&g.apiURL, "api", "", "service base URL, overrides config")
	fs.StringVar(&g.credential, "credential", "", "credential backend: file, redis or memory")
	fs.StringVar(&g.redisAddr, "redis-addr", "", "redis address for the redis backend")
	fs.DurationVar(&g.minInit, "min-init", -1, "minimum session initialization time; negative keeps config")
	fs.BoolVar(&g.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "status":
		err = cmdStatus(ctx, g, rest, stdout, stderr)
	case "profile":
		err = cmdProfile(ctx, g, rest, stdout, stderr)
	case "login":
		err = cmdLogin(ctx, g, rest, stdout, stderr)
	case "register":
		err = cmdRegister(ctx, g, rest, stdout, stderr)
	case "forgot-password":
		err = cmdForgotPassword(ctx, g, rest, stdout, stderr)
	case "reset-password":
		err = cmdResetPassword(ctx, g, rest, stdout, stderr)
	case "verify-email":
		err = cmdVerify(ctx, g, authsession.EmailVerify, rest, stdout, stderr)
	case "verify-login":
		err = cmdVerify(ctx, g, authsession.LoginVerify, rest, stdout, stderr)
	case "logout":
		err = cmdLogout(ctx, g, rest, stdout, stderr)
	case "serve":
		err = cmdServe(ctx, g, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "authclient %s: %v\n", cmd, err)
		return 1
	}
}

var errUsage = errors.New("usage")

// loadConfig layers defaults, the config file, the environment and flags, in
// that order.
func loadConfig(g globals, stderr io.Writer) (authsession.Config, error) {
	cfg := authsession.DefaultConfig()
	if g.configPath != "" {
		loaded, err := authsession.LoadConfig(g.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if g.apiURL != "" {
		cfg.API.BaseURL = g.apiURL
	}
	if g.credential != "" {
		cfg.Credential.Backend = strings.ToLower(strings.TrimSpace(g.credential))
	}
	if g.redisAddr != "" {
		cfg.Credential.RedisAddr = g.redisAddr
	}
	if g.minInit >= 0 {
		cfg.Session.MinInitDuration = g.minInit
	}

	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return cfg, nil
}

func openClient(ctx context.Context, g globals, stderr io.Writer) (*authsession.Client, error) {
	cfg, err := loadConfig(g, stderr)
	if err != nil {
		return nil, err
	}
	client, err := authsession.New().WithConfig(cfg).Build()
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newFlags(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func printState(w io.Writer, st authsession.State) {
	if !st.Authenticated || st.User == nil {
		fmt.Fprintln(w, "signed out")
		return
	}
	fmt.Fprintf(w, "signed in as %s <%s> (id %s, verified %t)\n", st.User.Name, st.User.Email, st.User.ID, st.User.IsVerified)
}

func cmdStatus(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlags("status", stderr), args); err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()
	printState(stdout, client.Session().State())
	printTokenClaims(ctx, stdout, client.Session())
	return nil
}

// printTokenClaims shows the expiry of a JWT session token. Opaque tokens print
// nothing.
func printTokenClaims(ctx context.Context, w io.Writer, s *authsession.Session) {
	token, ok, err := s.Token(ctx)
	if err != nil || !ok {
		return
	}
	claims, err := credential.Inspect(token)
	if err != nil {
		return
	}
	if claims.ExpiresAt.IsZero() {
		fmt.Fprintln(w, "token has no expiry")
		return
	}
	state := "valid until"
	if claims.Expired(time.Now()) {
		state = "expired at"
	}
	fmt.Fprintf(w, "token %s %s\n", state, claims.ExpiresAt.Format(time.RFC3339))
}

func cmdProfile(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlags("profile", stderr), args); err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()
	st, err := client.Profile(ctx)
	if err != nil {
		return err
	}
	printState(stdout, st)
	return nil
}

func cmdLogin(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlags("login", stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("AUTHCLIENT_PASSWORD"), "account password (default $AUTHCLIENT_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	if client.GuestOnly(authsession.NavigatorFunc(func(path string) {
		fmt.Fprintf(stdout, "already signed in, continue at %s\n", path)
	})) {
		return nil
	}

	outcome, err := client.PasswordLogin(ctx, *email, *password)
	if err != nil {
		return err
	}
	switch o := outcome.(type) {
	case api.LoginSucceeded:
		fmt.Fprintf(stdout, "signed in as %s\n", o.User.Email)
	case api.LoginNeedsVerification:
		fmt.Fprintf(stdout, "a confirmation link was sent to %s; open it or run verify-login --link\n", o.Email)
	}
	return nil
}

func cmdRegister(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlags("register", stderr)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("AUTHCLIENT_PASSWORD"), "new password (default $AUTHCLIENT_PASSWORD)")
	confirm := fs.String("confirm", "", "repeat the password; defaults to --password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.Register(ctx, *name, *email, *password, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg)
	return nil
}

func cmdForgotPassword(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlags("forgot-password", stderr)
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.ForgotPassword(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg)
	return nil
}

func cmdResetPassword(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlags("reset-password", stderr)
	link := fs.String("link", "", "reset link from the email")
	password := fs.String("password", os.Getenv("AUTHCLIENT_PASSWORD"), "new password (default $AUTHCLIENT_PASSWORD)")
	confirm := fs.String("confirm", "", "repeat the password; defaults to --password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}
	query, err := linkQuery(*link)
	if err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := client.ResetPassword(ctx, query, *password, *confirm)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, msg)
	return nil
}

func cmdVerify(ctx context.Context, g globals, kind authsession.Kind, args []string, stdout, stderr io.Writer) error {
	fs := newFlags(kind.String(), stderr)
	link := fs.String("link", "", "verification link from the email")
	if err := parse(fs, args); err != nil {
		return err
	}
	query, err := linkQuery(*link)
	if err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()

	if kind == authsession.LoginVerify && client.GuestOnly(authsession.NavigatorFunc(func(path string) {
		fmt.Fprintf(stdout, "already signed in, continue at %s\n", path)
	})) {
		return nil
	}

	nav := authsession.NavigatorFunc(func(path string) {
		fmt.Fprintf(stdout, "redirecting to %s\n", path)
	})
	attempt := client.Verify(ctx, kind, query, nav, snapshotPrinter(stdout))
	defer attempt.Close()

	if err := attempt.Wait(ctx); err != nil {
		return err
	}
	if snap := attempt.Snapshot(); snap.Status == authsession.StatusError {
		return snap.Err
	}
	return nil
}

func cmdLogout(ctx context.Context, g globals, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlags("logout", stderr), args); err != nil {
		return err
	}
	client, err := openClient(ctx, g, stderr)
	if err != nil {
		return err
	}
	defer client.Close()
	client.Logout(ctx)
	fmt.Fprintln(stdout, "signed out")
	return nil
}

// linkQuery accepts a full link or a bare query string such as "token=abc".
func linkQuery(link string) (url.Values, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return url.Values{}, nil
	}
	if !strings.Contains(link, "?") && !strings.Contains(link, "://") {
		q, err := url.ParseQuery(link)
		if err != nil {
			return nil, fmt.Errorf("parse link: %w", err)
		}
		return q, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse link: %w", err)
	}
	return u.Query(), nil
}

// snapshotPrinter prints the heading when the status changes and one line per
// countdown second.
func snapshotPrinter(w io.Writer) func(authsession.AttemptSnapshot) {
	var last authsession.AttemptSnapshot
	first := true
	return func(s authsession.AttemptSnapshot) {
		if first || s.Status != last.Status {
			fmt.Fprintln(w, s.Message)
			if s.Details != "" {
				fmt.Fprintln(w, "  "+s.Details)
			}
		}
		if s.Status.Terminal() && !s.Redirected && (first || s.SecondsRemaining != last.SecondsRemaining) {
			fmt.Fprintf(w, "  redirecting to %s in %ds\n", s.Destination, s.SecondsRemaining)
		}
		last, first = s, false
	}
}
