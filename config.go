package authsession

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete client configuration. Build one with DefaultConfig,
// optionally overlay a YAML file and the environment, then call Validate.
type Config struct {
	API          APIConfig          `yaml:"api"`
	Session      SessionConfig      `yaml:"session"`
	Credential   CredentialConfig   `yaml:"credential"`
	Verification VerificationConfig `yaml:"verification"`
	Paths        PathsConfig        `yaml:"paths"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Audit        AuditConfig        `yaml:"audit"`

	// Logger receives structured lifecycle logs. Nil discards them.
	Logger *slog.Logger `yaml:"-"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the remote authentication service.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes Session.Initialize.
type SessionConfig struct {
	// MinInitDuration is the minimum time Initialize takes, however fast the
	// stored token resolves. Refresh does not apply it.
	MinInitDuration time.Duration `yaml:"min_init_duration"`
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// Credential backends.
const (
	CredentialFile   = "file"
	CredentialMemory = "memory"
	CredentialRedis  = "redis"
)

// CredentialConfig selects where the session token is persisted.
type CredentialConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// CountdownConfig holds the seconds shown before the automatic redirect.
// RejectSeconds applies when the service answered and refused the token;
// ErrorSeconds covers a missing token, a transport failure and a failed
// sign-in.
type CountdownConfig struct {
	SuccessSeconds int `yaml:"success_seconds"`
	ErrorSeconds   int `yaml:"error_seconds"`
	RejectSeconds  int `yaml:"reject_seconds"`
}

// VerificationConfig tunes both verification flows.
type VerificationConfig struct {
	Email CountdownConfig `yaml:"email"`
	Login CountdownConfig `yaml:"login"`
	// TickInterval is the countdown period. One tick removes one second from
	// SecondsRemaining.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Countdown returns the countdown settings for kind.
func (c VerificationConfig) Countdown(kind Kind) CountdownConfig {
	if kind == LoginVerify {
		return c.Login
	}
	return c.Email
}

/*
====================================
PATHS CONFIG
====================================
*/

// PathsConfig names the navigation destinations.
type PathsConfig struct {
	Login     string `yaml:"login"`
	Dashboard string `yaml:"dashboard"`
}

/*
====================================
METRICS / AUDIT CONFIG
====================================
*/

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// AuditConfig enables the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:5000/api",
			Timeout:   10 * time.Second,
			UserAgent: "authsession",
		},
		Session: SessionConfig{
			MinInitDuration: 2000 * time.Millisecond,
		},
		Credential: CredentialConfig{
			Backend:     CredentialFile,
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "authsession",
		},
		Verification: VerificationConfig{
			Email: CountdownConfig{
				SuccessSeconds: 5,
				ErrorSeconds:   10,
				RejectSeconds:  5,
			},
			Login: CountdownConfig{
				SuccessSeconds: 5,
				ErrorSeconds:   5,
				RejectSeconds:  5,
			},
			TickInterval: time.Second,
		},
		Paths: PathsConfig{
			Login:     "/login",
			Dashboard: "/dashboard",
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// API
	u, err := url.Parse(strings.TrimSpace(c.API.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}

	// Session
	if c.Session.MinInitDuration < 0 {
		return errors.New("Session MinInitDuration must be >= 0")
	}

	// Credential
	switch c.Credential.Backend {
	case CredentialFile, CredentialMemory:
	case CredentialRedis:
		if strings.TrimSpace(c.Credential.RedisAddr) == "" {
			return errors.New("Credential RedisAddr required for redis backend")
		}
	default:
		return fmt.Errorf("unsupported credential backend %q", c.Credential.Backend)
	}

	// Verification
	for _, cd := range []CountdownConfig{c.Verification.Email, c.Verification.Login} {
		if cd.SuccessSeconds < 0 || cd.ErrorSeconds < 0 || cd.RejectSeconds < 0 {
			return errors.New("Verification countdown seconds must be >= 0")
		}
	}
	if c.Verification.TickInterval <= 0 {
		return errors.New("Verification TickInterval must be > 0")
	}

	// Paths
	if !strings.HasPrefix(c.Paths.Login, "/") || !strings.HasPrefix(c.Paths.Dashboard, "/") {
		return errors.New("Paths must be absolute")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// LoadConfig reads a YAML file over DefaultConfig. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAPIBaseURL        = "AUTHSESSION_API_URL"
	EnvCredentialBackend = "AUTHSESSION_CREDENTIAL"
	EnvCredentialPath    = "AUTHSESSION_CREDENTIAL_PATH"
	EnvRedisAddr         = "AUTHSESSION_REDIS_ADDR"
	EnvMinInitMillis     = "AUTHSESSION_MIN_INIT_MS"
)

// ApplyEnv overlays the AUTHSESSION_* environment onto c. lookup is normally
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvAPIBaseURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvCredentialBackend); ok && v != "" {
		c.Credential.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvCredentialPath); ok && v != "" {
		c.Credential.Path = v
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Credential.RedisAddr = v
	}
	if v, ok := lookup(EnvMinInitMillis); ok && v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMinInitMillis, err)
		}
		c.Session.MinInitDuration = time.Duration(ms) * time.Millisecond
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}
