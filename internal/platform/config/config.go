package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 20 * time.Second
	defaultHealthCacheTTL       = 2 * time.Second
	defaultRequestTimeout       = 30 * time.Second
	defaultMaxBodyBytes         = 1 << 20
	defaultStoreBackend         = StoreMemory
	defaultMongoDatabase        = "shopmart"
	defaultMongoTimeout         = 10 * time.Second
	defaultEventsBackend        = EventsInline
	defaultKafkaGroup           = "shopmart-statsworker"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultMetricsPath          = "/metrics"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreMongo     = "mongodb"
)

// Vendor stats event backends.
const (
	EventsInline = "inline"
	EventsPubSub = "pubsub"
	EventsKafka  = "kafka"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	Firestore   FirestoreConfig
	Mongo       MongoConfig
	Auth        AuthConfig
	Events      EventsConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For. Enable only behind a load balancer.
	TrustProxy bool
	// HealthCacheTTL reuses a readiness probe result for this long.
	HealthCacheTTL time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// MongoConfig stores MongoDB connection parameters.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// AuthConfig selects how bearer tokens are verified.
// A Firebase project enables ID token verification; otherwise HS256 tokens signed with JWTSecret are accepted.
type AuthConfig struct {
	JWTSecret               string
	Issuer                  string
	Audience                string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
}

// EventsConfig controls how vendor statistics increments travel.
type EventsConfig struct {
	Backend            string
	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroup         string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			TrustProxy:      boolWithDefault(lookup, "API_SERVER_TRUST_PROXY", false),
			HealthCacheTTL:  durationWithDefault(lookup, "API_SERVER_HEALTH_CACHE_TTL", defaultHealthCacheTTL),
			RequestTimeout:  durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			MaxBodyBytes:    intWithDefault(lookup, "API_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "API_STORE_BACKEND", defaultStoreBackend)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Mongo: MongoConfig{
			URI:      stringWithDefault(lookup, "API_MONGO_URI", ""),
			Database: stringWithDefault(lookup, "API_MONGO_DATABASE", defaultMongoDatabase),
			Timeout:  durationWithDefault(lookup, "API_MONGO_TIMEOUT", defaultMongoTimeout),
		},
		Auth: AuthConfig{
			JWTSecret:               stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			Issuer:                  stringWithDefault(lookup, "API_AUTH_JWT_ISSUER", ""),
			Audience:                stringWithDefault(lookup, "API_AUTH_JWT_AUDIENCE", ""),
			FirebaseProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			FirebaseCredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Events: EventsConfig{
			Backend:            strings.ToLower(stringWithDefault(lookup, "API_EVENTS_BACKEND", defaultEventsBackend)),
			PubSubProjectID:    stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:        stringWithDefault(lookup, "API_PUBSUB_VENDOR_STATS_TOPIC", ""),
			PubSubSubscription: stringWithDefault(lookup, "API_PUBSUB_VENDOR_STATS_SUBSCRIPTION", ""),
			KafkaBrokers:       csvWithDefault(lookup, "API_KAFKA_BROKERS"),
			KafkaTopic:         stringWithDefault(lookup, "API_KAFKA_VENDOR_STATS_TOPIC", ""),
			KafkaGroup:         stringWithDefault(lookup, "API_KAFKA_GROUP", defaultKafkaGroup),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Metrics: MetricsConfig{
			Enabled: boolWithDefault(lookup, "API_METRICS_ENABLED", true),
			Path:    stringWithDefault(lookup, "API_METRICS_PATH", defaultMetricsPath),
		},
	}

	// Pub/Sub and Firestore default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Auth.FirebaseProjectID
	}
	if cfg.Events.PubSubProjectID == "" {
		cfg.Events.PubSubProjectID = cfg.Firestore.ProjectID
	}

	secretFields := []*string{&cfg.Auth.JWTSecret, &cfg.Mongo.URI}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}

	switch cfg.Store.Backend {
	case StoreMemory:
	case StoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case StoreMongo:
		if cfg.Mongo.URI == "" {
			missing = append(missing, "Mongo.URI")
		}
		if cfg.Mongo.Database == "" {
			missing = append(missing, "Mongo.Database")
		}
	default:
		missing = append(missing, "Store.Backend")
	}

	if cfg.Auth.JWTSecret == "" && cfg.Auth.FirebaseProjectID == "" {
		missing = append(missing, "Auth.JWTSecret")
	}

	switch cfg.Events.Backend {
	case EventsInline:
	case EventsPubSub:
		if cfg.Events.PubSubProjectID == "" {
			missing = append(missing, "Events.PubSubProjectID")
		}
		if cfg.Events.PubSubTopic == "" {
			missing = append(missing, "Events.PubSubTopic")
		}
	case EventsKafka:
		if len(cfg.Events.KafkaBrokers) == 0 {
			missing = append(missing, "Events.KafkaBrokers")
		}
		if cfg.Events.KafkaTopic == "" {
			missing = append(missing, "Events.KafkaTopic")
		}
	default:
		missing = append(missing, "Events.Backend")
	}

	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		missing = append(missing, "Metrics.Path")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// WorkerSubscription reports whether the worker has a source to consume from.
func (c EventsConfig) WorkerSubscription() bool {
	switch c.Backend {
	case EventsPubSub:
		return c.PubSubSubscription != ""
	case EventsKafka:
		return len(c.KafkaBrokers) > 0 && c.KafkaTopic != "" && c.KafkaGroup != ""
	}
	return false
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}
