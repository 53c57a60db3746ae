package goSignup

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSignup/internal/audit"
	"github.com/MrEthical07/goSignup/internal/dispatch"
	"github.com/MrEthical07/goSignup/internal/limiters"
	"github.com/MrEthical07/goSignup/internal/stores"
	"github.com/MrEthical07/goSignup/link"
	"github.com/MrEthical07/goSignup/notify"
	"github.com/MrEthical07/goSignup/password"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	materializer AccountMaterializer
	hasher       CredentialHasher
	deliverer    notify.Deliverer
	auditSink    AuditSink
	logger       *slog.Logger

	built bool
}

// New returns a Builder initialised with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions and throttles. Any
// redis.UniversalClient works, including cluster and failover clients.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMaterializer sets the durable account store. If it also implements
// AccountReconciler, ReconcileRegistration becomes available.
func (b *Builder) WithMaterializer(m AccountMaterializer) *Builder {
	b.materializer = m
	return b
}

// WithHasher overrides the default Argon2id credential hasher.
func (b *Builder) WithHasher(h CredentialHasher) *Builder {
	b.hasher = h
	return b
}

// WithDeliverer sets the transport for code notifications.
func (b *Builder) WithDeliverer(d notify.Deliverer) *Builder {
	b.deliverer = d
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
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

// Build validates the configuration and starts the notification and audit
// workers. Call Engine.Close to stop them.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.materializer == nil {
		return nil, errors.New("account materializer required")
	}
	if b.deliverer == nil {
		return nil, errors.New("notification deliverer required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := &Engine{
		config:       cfg,
		logger:       logger,
		materializer: b.materializer,
		store: stores.NewRegistrationStore(
			b.redis,
			cfg.Store.RedisPrefix,
			stores.AtomicMode(cfg.Store.AtomicMode),
		),
		limiter: limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
			EnableIdentifierThrottle: cfg.Limiter.EnableIdentifierThrottle,
			EnableIPThrottle:         cfg.Limiter.EnableIPThrottle,
			Window:                   cfg.Limiter.Window,
			MaxStarts:                cfg.Limiter.MaxStarts,
			MaxVerifies:              cfg.Limiter.MaxVerifies,
			MaxResends:               cfg.Limiter.MaxResends,
		}),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	if reconciler, ok := b.materializer.(AccountReconciler); ok {
		engine.reconciler = reconciler
	}

	engine.hasher = b.hasher
	if engine.hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.hasher = ph
	}

	if len(cfg.Notification.LinkSecret) > 0 {
		lm, err := link.NewManager(link.Config{
			Secret: cfg.Notification.LinkSecret,
			Issuer: cfg.Notification.LinkIssuer,
		})
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.links = lm
	}

	engine.dispatcher = dispatch.New(dispatch.Config{
		Workers:        cfg.Dispatch.Workers,
		QueueSize:      cfg.Dispatch.QueueSize,
		DropIfFull:     cfg.Dispatch.DropIfFull,
		AttemptTimeout: cfg.Dispatch.AttemptTimeout,
		RatePerSecond:  cfg.Dispatch.RatePerSecond,
		Burst:          cfg.Dispatch.Burst,
		Retry: dispatch.RetryPolicy{
			MaxRetries:     cfg.Dispatch.Retry.MaxRetries,
			InitialBackoff: cfg.Dispatch.Retry.InitialBackoff,
			Multiplier:     cfg.Dispatch.Retry.Multiplier,
			MaxBackoff:     cfg.Dispatch.Retry.MaxBackoff,
			Jitter:         cfg.Dispatch.Retry.Jitter,
			Retryable:      cfg.Dispatch.Retry.Retryable,
		},
	}, b.deliverer, deliveryObserver{engine: engine})

	b.built = true

	return engine, nil
}
