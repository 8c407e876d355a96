package goSession

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/transport"
)

// Builder assembles an [Orchestrator]. A Builder can be used for one Build.
type Builder struct {
	config Config

	kv         session.KV
	redis      redis.UniversalClient
	httpClient *http.Client
	logger     *slog.Logger
	clock      session.Clock
	sink       TransitionSink
	hooks      transport.Hooks

	built bool
}

// New returns a Builder with [DefaultConfig]. The backend URL must still be set.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Backend.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Backend.BaseURL = baseURL
	return b
}

// WithKV stores tokens in kv, overriding Storage.Driver.
func (b *Builder) WithKV(kv session.KV) *Builder {
	b.kv = kv
	return b
}

// WithRedis stores tokens in Redis through client, overriding Storage.Driver. The
// caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the client used for backend calls. Its Transport becomes the base
// of the authenticated transport.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces the clock driving the proactive refresh timer.
func (b *Builder) WithClock(c session.Clock) *Builder {
	b.clock = c
	return b
}

// WithSink receives every transition after subscribers.
func (b *Builder) WithSink(s TransitionSink) *Builder {
	b.sink = s
	return b
}

// WithTransportHooks observes 401 responses and retries of authenticated requests.
func (b *Builder) WithTransportHooks(h transport.Hooks) *Builder {
	b.hooks = h
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the orchestrator. It performs no I/O
// beyond creating a Redis client when Storage.Driver is "redis"; call
// [Orchestrator.Init] to restore a persisted session.
func (b *Builder) Build() (*Orchestrator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = session.SystemClock{}
	}

	o := &Orchestrator{
		config:  cfg,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}

	// -------- TOKEN STORAGE --------
	kv, err := b.storage(cfg, o)
	if err != nil {
		return nil, err
	}
	o.store = session.NewStore(kv, session.Options{
		AccessKey:       cfg.Session.AccessKey,
		RefreshKey:      cfg.Session.RefreshKey,
		RefreshInterval: cfg.Session.RefreshInterval,
		ExpiryLead:      cfg.Session.ExpiryLead,
		Expiry:          jwt.ExpiresAt,
		Clock:           clock,
		Logger:          logger,
	})

	// -------- BACKEND CLIENTS --------
	base := b.httpClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Backend.Timeout}
	}
	o.backend, err = api.NewClient(cfg.Backend.BaseURL, base)
	if err != nil {
		return nil, err
	}

	rt := transport.New(base.Transport, tokenSource{o: o}, logger)
	rt.Hooks = b.transportHooks(o)
	authedHTTP := *base
	authedHTTP.Transport = rt
	o.http = &authedHTTP
	o.authed = o.backend.WithHTTPClient(o.http)

	// -------- STATE --------
	o.machine = newStateMachine(cfg.Notify, b.sink, time.Now, logger)

	// -------- FLOWS --------
	validate := newValidator()
	warn := func(msg string, args ...any) { logger.Warn(msg, args...) }
	o.flows = flows.Deps{
		Refresh: flows.RefreshDeps{
			Store:       o.store,
			CallRefresh: o.backend.Refresh,
			Warn:        warn,
		},
		Login: flows.LoginDeps{
			Validate:   validate.Struct,
			CallLogin:  o.backend.Login,
			CallVerify: o.backend.VerifyTwoFactor,
			FetchUser:  o.authed.Me,
			Store:      o.store,
			Warn:       warn,
		},
		Logout: flows.LogoutDeps{
			Store:      o.store,
			CallLogout: o.backend.Logout,
		},
		Restore: flows.RestoreDeps{
			Store:     o.store,
			FetchUser: o.authed.Me,
		},
	}

	o.store.SetRefreshHandler(o.onRefreshDue)

	b.built = true
	return o, nil
}

func (b *Builder) storage(cfg Config, o *Orchestrator) (session.KV, error) {
	switch {
	case b.kv != nil:
		return b.kv, nil
	case b.redis != nil:
		return session.NewRedisKV(b.redis, cfg.Storage.Redis.Prefix, cfg.Storage.Redis.TTL), nil
	}

	switch cfg.Storage.Driver {
	case StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		o.ownedRedis = client
		return session.NewRedisKV(client, cfg.Storage.Redis.Prefix, cfg.Storage.Redis.TTL), nil
	case StorageFile:
		return session.NewFileKV(cfg.Storage.FilePath), nil
	default:
		return session.NewMemoryKV(), nil
	}
}

// transportHooks counts 401s and retries, then calls the hooks set on the builder.
func (b *Builder) transportHooks(o *Orchestrator) transport.Hooks {
	user := b.hooks
	return transport.Hooks{
		OnUnauthorized: func(req *http.Request) {
			o.metrics.Inc(MetricRequestUnauthorized)
			if user.OnUnauthorized != nil {
				user.OnUnauthorized(req)
			}
		},
		OnRetry: func(req *http.Request) {
			o.metrics.Inc(MetricRequestRetried)
			if user.OnRetry != nil {
				user.OnRetry(req)
			}
		},
	}
}
