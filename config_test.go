package authsession

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "relative api url invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "/api"
			},
			wantValid: false,
		},
		{
			name: "ftp api url invalid",
			mutate: func(c *Config) {
				c.API.BaseURL = "ftp://example.com/api"
			},
			wantValid: false,
		},
		{
			name: "zero timeout invalid",
			mutate: func(c *Config) {
				c.API.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "zero min init valid",
			mutate: func(c *Config) {
				c.Session.MinInitDuration = 0
			},
			wantValid: true,
		},
		{
			name: "negative min init invalid",
			mutate: func(c *Config) {
				c.Session.MinInitDuration = -time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "unknown backend invalid",
			mutate: func(c *Config) {
				c.Credential.Backend = "keychain"
			},
			wantValid: false,
		},
		{
			name: "redis without addr invalid",
			mutate: func(c *Config) {
				c.Credential.Backend = CredentialRedis
				c.Credential.RedisAddr = " "
			},
			wantValid: false,
		},
		{
			name: "negative countdown invalid",
			mutate: func(c *Config) {
				c.Verification.Login.ErrorSeconds = -1
			},
			wantValid: false,
		},
		{
			name: "negative reject countdown invalid",
			mutate: func(c *Config) {
				c.Verification.Email.RejectSeconds = -1
			},
			wantValid: false,
		},
		{
			name: "zero tick invalid",
			mutate: func(c *Config) {
				c.Verification.TickInterval = 0
			},
			wantValid: false,
		},
		{
			name: "relative path invalid",
			mutate: func(c *Config) {
				c.Paths.Dashboard = "dashboard"
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected invalid config")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestDefaultConfigCountdowns(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Session.MinInitDuration != 2000*time.Millisecond {
		t.Fatalf("unexpected floor %v", cfg.Session.MinInitDuration)
	}
	if got := cfg.Verification.Countdown(EmailVerify); got.SuccessSeconds != 5 || got.ErrorSeconds != 10 || got.RejectSeconds != 5 {
		t.Fatalf("unexpected email countdown %+v", got)
	}
	if got := cfg.Verification.Countdown(LoginVerify); got.SuccessSeconds != 5 || got.ErrorSeconds != 5 || got.RejectSeconds != 5 {
		t.Fatalf("unexpected login countdown %+v", got)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authsession.yaml")
	doc := []byte(`
api:
  base_url: https://auth.example.com/api
session:
  min_init_duration: 500ms
verification:
  email:
    error_seconds: 3
`)
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.API.BaseURL != "https://auth.example.com/api" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Session.MinInitDuration != 500*time.Millisecond {
		t.Fatalf("unexpected floor %v", cfg.Session.MinInitDuration)
	}
	if cfg.Verification.Email.ErrorSeconds != 3 || cfg.Verification.Email.SuccessSeconds != 5 {
		t.Fatalf("unexpected email countdown %+v", cfg.Verification.Email)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Fatalf("default timeout lost: %v", cfg.API.Timeout)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("api: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIBaseURL:        "http://127.0.0.1:9000/api",
		EnvCredentialBackend: " Redis ",
		EnvRedisAddr:         "10.0.0.1:6379",
		EnvMinInitMillis:     "250",
	}
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.API.BaseURL != env[EnvAPIBaseURL] || cfg.Credential.Backend != CredentialRedis || cfg.Credential.RedisAddr != "10.0.0.1:6379" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Session.MinInitDuration != 250*time.Millisecond {
		t.Fatalf("unexpected floor %v", cfg.Session.MinInitDuration)
	}

	bad := DefaultConfig()
	err = bad.ApplyEnv(func(k string) (string, bool) {
		if k == EnvMinInitMillis {
			return "soon", true
		}
		return "", false
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
