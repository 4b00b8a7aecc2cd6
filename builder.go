package authsession

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsession/api"
	"github.com/MrEthical07/authsession/credential"
	"github.com/MrEthical07/authsession/internal/flows"
)

// Builder assembles a Client. A Builder is single use.
type Builder struct {
	config Config
	store  credential.Store
	redis  redis.UniversalClient
	http   *http.Client

	auditSink AuditSink

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCredentialStore overrides the backend named by Config.Credential.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis credential backend. Without
// it Build dials Config.Credential.RedisAddr.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the transport used for service calls.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.http = hc
	return b
}

// WithAuditSink sets the audit destination. Audit events are only produced
// when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the lifecycle counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the profile latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the session, verifier and
// service client together.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()

	// -------- CREDENTIAL STORE --------
	store := b.store
	var closeStore func() error
	if store == nil {
		var err error
		store, closeStore, err = b.openStore(cfg.Credential)
		if err != nil {
			return nil, err
		}
	}

	// -------- SERVICE CLIENT --------
	hc := b.http
	if hc == nil {
		hc = &http.Client{Timeout: cfg.API.Timeout}
	}
	svc := api.NewClient(cfg.API.BaseURL,
		api.WithHTTPClient(hc),
		api.WithUserAgent(cfg.API.UserAgent),
	)

	metrics := NewMetrics(cfg.Metrics)
	audit := newAuditDispatcher(cfg.Audit, b.auditSink)

	session := NewSession(store, svc, SessionOptions{
		MinInitDuration: cfg.Session.MinInitDuration,
		Logger:          logger.With("component", "session"),
		Metrics:         metrics,
		audit:           audit,
	})
	verifier := NewVerifier(session, svc, VerifierOptions{
		Verification: cfg.Verification,
		Paths:        cfg.Paths,
		Logger:       logger.With("component", "verification"),
		Metrics:      metrics,
		audit:        audit,
	})

	b.built = true

	client := &Client{
		config:   cfg,
		logger:   logger,
		api:      svc,
		session:  session,
		verifier: verifier,
		metrics:  metrics,
		audit:    audit,
		closeFn:  closeStore,
		now:      time.Now,
	}
	client.deps = flows.Deps{Account: client.accountDeps()}
	return client, nil
}

// openStore returns the configured backend. The close func is non-nil only
// when Build dialed a connection itself.
func (b *Builder) openStore(cfg CredentialConfig) (credential.Store, func() error, error) {
	switch cfg.Backend {
	case CredentialMemory:
		return credential.NewMemoryStore(), nil, nil
	case CredentialRedis:
		if b.redis != nil {
			return credential.NewRedisStore(b.redis, cfg.RedisPrefix), nil, nil
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return credential.NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	default:
		path := cfg.Path
		if path == "" {
			var err error
			path, err = credential.DefaultPath()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: credential path: %v", ErrInvalidConfig, err)
			}
		}
		fs, err := credential.NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	}
}
