package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_AUTH_JWT_SECRET": "dev-secret",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.TrustProxy {
		t.Errorf("forwarded headers must not be trusted by default")
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("expected memory store by default, got %s", cfg.Store.Backend)
	}
	if cfg.Events.Backend != EventsInline {
		t.Errorf("expected inline events by default, got %s", cfg.Events.Backend)
	}
	if cfg.Mongo.Database != defaultMongoDatabase {
		t.Errorf("unexpected mongo database: %s", cfg.Mongo.Database)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                      "9090",
		"API_SERVER_READ_TIMEOUT":              "20s",
		"API_STORE_BACKEND":                    "MongoDB",
		"API_MONGO_URI":                        "sm://mongo/uri",
		"API_MONGO_DATABASE":                   "shop",
		"API_AUTH_JWT_SECRET":                  "secret://auth/jwt",
		"API_AUTH_JWT_ISSUER":                  "shopmart",
		"API_FIREBASE_PROJECT_ID":              "shop-prod",
		"API_EVENTS_BACKEND":                   "kafka",
		"API_KAFKA_BROKERS":                    "kafka-1:9092, kafka-2:9092,kafka-1:9092",
		"API_KAFKA_VENDOR_STATS_TOPIC":         "vendor-stats",
		"API_PUBSUB_VENDOR_STATS_SUBSCRIPTION": "ignored",
		"API_IDEMPOTENCY_HEADER":               "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":                  "48h",
		"API_METRICS_ENABLED":                  "false",
		"API_SERVER_TRUST_PROXY":               "true",
	}
	secrets := map[string]string{
		"secret://mongo/uri": "mongodb://db:27017",
		"secret://auth/jwt":  "jwt-secret",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second || !cfg.Server.TrustProxy {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Backend != StoreMongo {
		t.Errorf("expected mongodb backend, got %s", cfg.Store.Backend)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" || cfg.Mongo.Database != "shop" {
		t.Errorf("unexpected mongo config: %+v", cfg.Mongo)
	}
	if cfg.Auth.JWTSecret != "jwt-secret" || cfg.Auth.Issuer != "shopmart" {
		t.Errorf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.Firestore.ProjectID != "shop-prod" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if !slices.Equal(cfg.Events.KafkaBrokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Errorf("unexpected brokers: %v", cfg.Events.KafkaBrokers)
	}
	if !cfg.Events.WorkerSubscription() {
		t.Errorf("expected kafka worker to be configured")
	}
	if cfg.Idempotency.Header != "X-Idem-Key" || cfg.Idempotency.TTL != 48*time.Hour {
		t.Errorf("unexpected idempotency config: %+v", cfg.Idempotency)
	}
	if cfg.Metrics.Enabled {
		t.Errorf("expected metrics disabled")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_STORE_BACKEND":   "firestore",
		"API_EVENTS_BACKEND":  "pubsub",
		"API_IDEMPOTENCY_TTL": "-1s",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{"Firestore.ProjectID", "Auth.JWTSecret", "Events.PubSubProjectID", "Events.PubSubTopic", "Idempotency.TTL"}
	if !slices.Equal(vErr.Fields(), want) {
		t.Fatalf("expected fields %v, got %v", want, vErr.Fields())
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	env := map[string]string{
		"API_AUTH_JWT_SECRET": "s",
		"API_STORE_BACKEND":   "postgres",
		"API_EVENTS_BACKEND":  "sqs",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !slices.Equal(vErr.Fields(), []string{"Store.Backend", "Events.Backend"}) {
		t.Fatalf("unexpected fields %v", vErr.Fields())
	}
}

func TestLoadSecretWithoutResolver(t *testing.T) {
	env := map[string]string{
		"API_AUTH_JWT_SECRET": "sm://auth/jwt",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
	if sErr.Ref != "secret://auth/jwt" {
		t.Fatalf("expected normalized ref, got %s", sErr.Ref)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected resolver not configured, got %v", err)
	}
}

func TestLoadDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nAPI_SERVER_PORT=7070\nexport API_AUTH_JWT_SECRET=\"from-file\"\nAPI_MONGO_DATABASE=filedb\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_MONGO_DATABASE": "mapdb"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from env file, got %s", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Errorf("expected unquoted secret from env file, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Mongo.Database != "mapdb" {
		t.Errorf("expected env map to win over env file, got %s", cfg.Mongo.Database)
	}
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_AUTH_JWT_SECRET": "s"}),
	)
	if err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}
