// Package config loads runtime configuration from the environment with
// optional .env overrides for local development. Values shaped like
// secret:// references are resolved through a SecretResolver at load time.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	defaultAdminLocale  = "en"
	defaultShopLocale   = "id"
	defaultEventsTopic  = "order-events"
	defaultPageSize     = 20
	defaultMaxPageSize  = 100
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firestore     FirestoreConfig
	PubSub        PubSubConfig
	Gateway       GatewayConfig
	Notifications NotificationConfig
	Listing       ListingConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig configures the order event topic.
type PubSubConfig struct {
	ProjectID    string
	EventsTopic  string
	EmulatorHost string
}

// GatewayConfig collects payment gateway settings. The webhook secret may be
// a secret:// reference resolved at load time.
type GatewayConfig struct {
	WebhookSecret string
}

// NotificationConfig controls notification copy locales.
type NotificationConfig struct {
	AdminLocale   string
	DefaultLocale string
}

// ListingConfig bounds admin list page sizes.
type ListingConfig struct {
	DefaultPageSize int
	MaxPageSize     int
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
	return append([]string(nil), e.fields...)
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
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// env answers configuration lookups in precedence order: explicit map,
// process environment, .env file.
type env struct {
	explicit map[string]string
	system   bool
	dotenv   map[string]string
}

func (e env) raw(key string) string {
	if value, ok := e.explicit[key]; ok {
		return value
	}
	if e.system {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
	}
	return e.dotenv[key]
}

func (e env) str(key, fallback string) string {
	if value := e.raw(key); value != "" {
		return value
	}
	return fallback
}

func (e env) duration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(e.raw(key)); err == nil {
		return d
	}
	return fallback
}

func (e env) num(key string, fallback int) int {
	if n, err := strconv.Atoi(e.raw(key)); err == nil {
		return n
	}
	return fallback
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotenv, err := parseEnvFile(options.envFile)
	if err != nil {
		return Config{}, err
	}
	lookup := env{explicit: options.envMap, system: options.useSystemEnv, dotenv: dotenv}

	cfg := Config{
		Server: ServerConfig{
			Port:         lookup.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  lookup.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: lookup.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  lookup.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: lookup.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:    lookup.str("API_PUBSUB_PROJECT_ID", ""),
			EventsTopic:  lookup.str("API_PUBSUB_EVENTS_TOPIC", defaultEventsTopic),
			EmulatorHost: lookup.str("API_PUBSUB_EMULATOR_HOST", ""),
		},
		Gateway: GatewayConfig{
			WebhookSecret: lookup.str("API_GATEWAY_WEBHOOK_SECRET", ""),
		},
		Notifications: NotificationConfig{
			AdminLocale:   lookup.str("API_NOTIFICATIONS_ADMIN_LOCALE", defaultAdminLocale),
			DefaultLocale: lookup.str("API_NOTIFICATIONS_DEFAULT_LOCALE", defaultShopLocale),
		},
		Listing: ListingConfig{
			DefaultPageSize: lookup.num("API_LISTING_DEFAULT_PAGE_SIZE", defaultPageSize),
			MaxPageSize:     lookup.num("API_LISTING_MAX_PAGE_SIZE", defaultMaxPageSize),
		},
	}

	// Pub/Sub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	cfg.Gateway.WebhookSecret, err = resolveSecret(ctx, cfg.Gateway.WebhookSecret, options.secret)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	ref, isRef := secretReference(value)
	if !isRef {
		return value, nil
	}
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

// secretReference reports whether the value names an external secret and
// returns the normalised secret:// form.
func secretReference(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(trimmed, "secret://"):
		return trimmed, true
	case strings.HasPrefix(trimmed, "sm://"):
		return "secret://" + strings.TrimPrefix(trimmed, "sm://"), true
	}
	return "", false
}

func (c Config) validate() error {
	var missing []string
	if c.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if c.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if c.PubSub.EventsTopic == "" {
		missing = append(missing, "PubSub.EventsTopic")
	}
	if c.Listing.DefaultPageSize <= 0 {
		missing = append(missing, "Listing.DefaultPageSize")
	}
	if c.Listing.MaxPageSize < c.Listing.DefaultPageSize {
		missing = append(missing, "Listing.MaxPageSize")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// parseEnvFile reads KEY=VALUE pairs, skipping comments and blank lines.
// A missing file is not an error.
func parseEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}
	return values, nil
}
