package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the service root used when none is configured.
const DefaultBaseURL = "http://localhost:5000/api"

// DefaultTimeout bounds a single request when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 1 << 20

// RequestIDHeader carries a per-request uuid for server-side correlation.
const RequestIDHeader = "X-Request-ID"

// Client talks to the /auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient returns a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "authsession",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login posts credentials. The outcome is LoginSucceeded or LoginNeedsVerification.
func (c *Client) Login(ctx context.Context, creds Credentials) (LoginOutcome, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &resp); err != nil {
		return nil, err
	}
	if resp.RequiresVerification {
		return LoginNeedsVerification{
			VerificationToken: resp.VerificationToken,
			Email:             resp.Email,
		}, nil
	}
	if resp.Token == "" || resp.User == nil {
		return nil, transportError("login", errors.New("response missing token or user"))
	}
	return LoginSucceeded{Token: resp.Token, User: *resp.User}, nil
}

// Register creates an account and returns the server message.
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", reg, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// VerifyEmail consumes an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify/"+url.PathEscape(token), "", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// VerifyLogin consumes a login verification token and returns the new session.
func (c *Client) VerifyLogin(ctx context.Context, token string) (LoginSucceeded, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify-login/"+url.PathEscape(token), "", nil, &resp); err != nil {
		return LoginSucceeded{}, err
	}
	if resp.Token == "" || resp.User == nil {
		return LoginSucceeded{}, transportError("verify-login", errors.New("response missing token or user"))
	}
	return LoginSucceeded{Token: resp.Token, User: *resp.User}, nil
}

// ForgotPassword asks the service to email a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/forgot-password", "", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var resp messageResponse
	body := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(token), "", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Profile fetches the user the bearer token belongs to.
func (c *Client) Profile(ctx context.Context, bearer string) (User, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, "/auth/profile", bearer, nil, &resp); err != nil {
		return User{}, err
	}
	if resp.User == nil {
		return User{}, transportError("profile", errors.New("response missing user"))
	}
	return *resp.User, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return transportError(path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg messageResponse
		// Error bodies are best-effort; a non-JSON body still yields a status.
		_ = json.Unmarshal(raw, &msg)
		return &Error{Status: resp.StatusCode, Message: msg.Message}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return transportError(path, err)
	}
	return nil
}
