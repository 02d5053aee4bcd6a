package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	domain "github.com/shopmart/api/internal/domain"
	"github.com/shopmart/api/internal/platform/auth"
	"github.com/shopmart/api/internal/platform/config"
	pfirestore "github.com/shopmart/api/internal/platform/firestore"
	"github.com/shopmart/api/internal/platform/idempotency"
	"github.com/shopmart/api/internal/platform/jobs"
	"github.com/shopmart/api/internal/platform/mongodb"
	"github.com/shopmart/api/internal/platform/observability"
	"github.com/shopmart/api/internal/repositories"
	firestorerepo "github.com/shopmart/api/internal/repositories/firestore"
	"github.com/shopmart/api/internal/repositories/memory"
	mongorepo "github.com/shopmart/api/internal/repositories/mongo"
	"github.com/shopmart/api/internal/services"
)

const idempotencyCollection = "idempotency_keys"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders      services.OrderService
	Inventory   services.InventoryService
	VendorStats services.VendorStatsService
	System      services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Repositories  repositories.Registry
	Services      Services
	Metrics       *observability.Metrics
	Idempotency   idempotency.Store
	Authenticator *auth.Authenticator

	// PubSub is set when Pub/Sub carries vendor stats events.
	PubSub *pubsub.Client

	closers []func(context.Context) error
}

// Option customises container construction.
type Option func(*options)

type options struct {
	registry repositories.Registry
	verifier auth.TokenVerifier
	logger   *zap.Logger
	build    services.BuildInfo
	clock    func() time.Time
	service  string
}

// WithRegistry bypasses backend selection, mainly for tests.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithTokenVerifier replaces the verifier chain built from the auth config.
func WithTokenVerifier(v auth.TokenVerifier) Option {
	return func(o *options) {
		o.verifier = v
	}
}

// WithLogger sets the base logger for service events and background workers.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBuildInfo sets the version reported by health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithClock overrides the clock used by services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithServiceName labels the Prometheus registry.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.service = name
	}
}

// NewContainer constructs the runtime dependencies for the selected store and event backends.
// On error every resource opened so far is released.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (c *Container, err error) {
	o := options{
		logger:  zap.NewNop(),
		clock:   time.Now,
		service: "api",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c = &Container{
		Config:  cfg,
		Metrics: observability.NewMetrics(o.service),
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	var checks []repositories.DependencyCheck
	if o.registry != nil {
		c.Repositories = o.registry
		c.Idempotency = idempotency.NewMemoryStore()
		checks = append(checks, repositories.DependencyCheck{Name: "store", Check: o.registry.Ping})
	} else {
		storeChecks, err := c.openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		checks = append(checks, storeChecks...)
	}

	publisher, eventChecks, err := c.openEvents(ctx, cfg)
	if err != nil {
		return nil, err
	}
	checks = append(checks, eventChecks...)

	logEvent := observability.EventLogger(o.logger.Named("services"))

	stats, err := services.NewVendorStatsService(services.VendorStatsServiceDeps{
		Vendors:   c.Repositories.Vendors(),
		Publisher: publisher,
		Clock:     o.clock,
		Logger:    logEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build vendor stats service: %w", err)
	}

	pricing, err := services.NewOrderPricingEngine(domain.DefaultPricingPolicy)
	if err != nil {
		return nil, fmt.Errorf("build pricing engine: %w", err)
	}

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:  c.Repositories.Orders(),
		Catalog: c.Repositories.Catalog(),
		Vendors: c.Repositories.Vendors(),
		Pricing: pricing,
		Stats:   stats,
		Metrics: c.Metrics,
		Clock:   o.clock,
		Logger:  logEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build order service: %w", err)
	}

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Catalog: c.Repositories.Catalog(),
		Metrics: c.Metrics,
		Clock:   o.clock,
		Logger:  logEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build inventory service: %w", err)
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks, repositories.WithHealthClock(o.clock))
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	system, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            o.clock,
		Build:            o.build,
		CacheTTL:         cfg.Server.HealthCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build system service: %w", err)
	}

	verifier := o.verifier
	if verifier == nil {
		verifier, err = buildVerifier(ctx, cfg.Auth)
		if err != nil {
			return nil, err
		}
	}

	c.Services = Services{
		Orders:      orders,
		Inventory:   inventory,
		VendorStats: stats,
		System:      system,
	}
	c.Authenticator = auth.NewAuthenticator(verifier)
	return c, nil
}

// IdempotencyMiddleware replays order creation responses keyed by the configured header.
func (c *Container) IdempotencyMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return idempotency.Middleware(c.Idempotency,
		idempotency.WithHeader(c.Config.Idempotency.Header),
		idempotency.WithTTL(c.Config.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithLogger(logger),
		idempotency.WithOutcomeRecorder(c.Metrics.IdempotencyOutcome),
	)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

func (c *Container) openStore(ctx context.Context, cfg config.Config) ([]repositories.DependencyCheck, error) {
	switch cfg.Store.Backend {
	case config.StoreFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		c.onClose(provider.Close)
		reg, err := firestorerepo.NewRegistry(provider)
		if err != nil {
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		client, err := provider.Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect firestore: %w", err)
		}
		c.Repositories = reg
		c.Idempotency = idempotency.NewFirestoreStore(client, idempotency.WithCollection(idempotencyCollection))
		return []repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}, nil

	case config.StoreMongo:
		client, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		c.onClose(client.Close)
		reg, err := mongorepo.NewRegistry(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("build mongodb registry: %w", err)
		}
		store := idempotency.NewMongoStore(client.Database(), idempotencyCollection)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure idempotency indexes: %w", err)
		}
		c.Repositories = reg
		c.Idempotency = store
		return []repositories.DependencyCheck{{Name: "mongodb", Check: client.Ping}}, nil

	default:
		store := memory.NewStore()
		c.Repositories = store
		c.Idempotency = idempotency.NewMemoryStore()
		return []repositories.DependencyCheck{{Name: "store", Check: store.Ping}}, nil
	}
}

// openEvents returns the broker publisher for vendor stats, or nil for inline application.
func (c *Container) openEvents(ctx context.Context, cfg config.Config) (services.VendorStatsPublisher, []repositories.DependencyCheck, error) {
	switch cfg.Events.Backend {
	case config.EventsPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Events.PubSubProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect pubsub: %w", err)
		}
		c.PubSub = client
		c.onClose(func(context.Context) error { return client.Close() })

		topic := client.Topic(cfg.Events.PubSubTopic)
		publisher, err := jobs.NewPubSubVendorStatsPublisher(topic, jobs.WithVendorOrdering())
		if err != nil {
			return nil, nil, err
		}
		c.onClose(func(context.Context) error {
			publisher.Stop()
			return nil
		})
		check := repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", cfg.Events.PubSubTopic)
				}
				return nil
			},
		}
		return publisher, []repositories.DependencyCheck{check}, nil

	case config.EventsKafka:
		writer := jobs.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		publisher, err := jobs.NewKafkaVendorStatsPublisher(writer)
		if err != nil {
			_ = writer.Close()
			return nil, nil, err
		}
		c.onClose(func(context.Context) error { return publisher.Close() })
		return publisher, nil, nil

	default:
		return nil, nil, nil
	}
}

// buildVerifier prefers Firebase ID tokens when a project is configured and keeps HS256 tokens as a fallback.
func buildVerifier(ctx context.Context, cfg config.AuthConfig) (auth.TokenVerifier, error) {
	var chain auth.ChainVerifier
	if cfg.FirebaseProjectID != "" {
		firebase, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		chain = append(chain, firebase)
	}
	if cfg.JWTSecret != "" {
		var jwtOpts []auth.JWTOption
		if cfg.Issuer != "" {
			jwtOpts = append(jwtOpts, auth.WithJWTIssuer(cfg.Issuer))
		}
		if cfg.Audience != "" {
			jwtOpts = append(jwtOpts, auth.WithJWTAudience(cfg.Audience))
		}
		jwtVerifier, err := auth.NewJWTVerifier(cfg.JWTSecret, jwtOpts...)
		if err != nil {
			return nil, fmt.Errorf("build jwt verifier: %w", err)
		}
		chain = append(chain, jwtVerifier)
	}
	if len(chain) == 0 {
		return nil, errors.New("auth: no token verifier configured")
	}
	return chain, nil
}
