package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultVersion  = "latest"
	metricNamespace = "github.com/bloom-bouquet/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references against Google Secret Manager with an
// in-process cache. It satisfies config.SecretResolver.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger    *zap.Logger
	projectID string

	mu    sync.RWMutex
	cache map[string]cacheEntry

	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type cacheEntry struct {
	value     string
	fetchedAt time.Time
}

type fetcherConfig struct {
	logger     *zap.Logger
	projectID  string
	client     secretManagerClient
	clientOpts []option.ClientOption
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithProject sets the default project used for short secret references.
func WithProject(projectID string) Option {
	return func(cfg *fetcherConfig) {
		cfg.projectID = strings.TrimSpace(projectID)
	}
}

// WithClient injects a pre-built Secret Manager client, mainly for tests.
func WithClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions appends options used when the fetcher builds its own client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// NewFetcher constructs a Fetcher.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	client := cfg.client
	ownsClient := false
	if client == nil {
		built, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		client = built
		ownsClient = true
	}

	meter := otel.GetMeterProvider().Meter(metricNamespace)
	latency, err := meter.Float64Histogram("secrets.fetch.duration",
		metric.WithDescription("Secret Manager fetch latency"),
		metric.WithUnit("ms"))
	if err != nil {
		latency = nil
	}
	cacheHits, err := meter.Int64Counter("secrets.cache.hits",
		metric.WithDescription("Secret cache hit count"))
	if err != nil {
		cacheHits = nil
	}

	return &Fetcher{
		client:     client,
		ownsClient: ownsClient,
		logger:     cfg.logger,
		projectID:  cfg.projectID,
		cache:      make(map[string]cacheEntry),
		latency:    latency,
		cacheHits:  cacheHits,
	}, nil
}

// Close releases the Secret Manager client if the fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || !f.ownsClient || f.client == nil {
		return nil
	}
	return f.client.Close()
}

// ResolveSecret resolves a secret:// reference to its payload. Supported forms:
//
//	secret://projects/<project>/secrets/<name>/versions/<version>
//	secret://<name>           (default project, latest version)
//	secret://<name>@<version> (default project, pinned version)
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, err := f.canonicalName(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	entry, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		if f.cacheHits != nil {
			f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", name)))
		}
		return entry.value, nil
	}

	start := time.Now()
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if f.latency != nil {
		f.latency.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	if err != nil {
		f.logger.Warn("secret fetch failed", zap.String("secret", name), zap.Error(err))
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}

	value := string(resp.GetPayload().GetData())
	f.mu.Lock()
	f.cache[name] = cacheEntry{value: value, fetchedAt: time.Now()}
	f.mu.Unlock()

	return value, nil
}

func (f *Fetcher) canonicalName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	trimmed = strings.TrimPrefix(trimmed, "secret://")
	trimmed = strings.TrimPrefix(trimmed, "sm://")
	if trimmed == "" {
		return "", errors.New("secrets: empty reference")
	}

	if strings.HasPrefix(trimmed, "projects/") {
		return trimmed, nil
	}

	name := trimmed
	version := defaultVersion
	if idx := strings.LastIndex(trimmed, "@"); idx >= 0 {
		name = trimmed[:idx]
		version = trimmed[idx+1:]
	}
	if name == "" || version == "" {
		return "", fmt.Errorf("secrets: malformed reference %q", ref)
	}
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: no default project for reference %q", ref)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version), nil
}
