package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID": "bloom-test",
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "bloom-test" {
		t.Errorf("PubSub.ProjectID = %q, want the Firestore project", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.EventsTopic != "order-events" {
		t.Errorf("PubSub.EventsTopic = %q", cfg.PubSub.EventsTopic)
	}
	if cfg.Notifications.AdminLocale != "en" || cfg.Notifications.DefaultLocale != "id" {
		t.Errorf("Notifications = %+v", cfg.Notifications)
	}
	if cfg.Listing.DefaultPageSize != 20 || cfg.Listing.MaxPageSize != 100 {
		t.Errorf("Listing = %+v", cfg.Listing)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_SERVER_PORT":           "9090",
			"API_SERVER_READ_TIMEOUT":   "5s",
			"API_FIRESTORE_PROJECT_ID":  "bloom-prod",
			"API_PUBSUB_PROJECT_ID":     "bloom-events",
			"API_PUBSUB_EVENTS_TOPIC":   "orders-v2",
			"API_LISTING_MAX_PAGE_SIZE": "50",
		}),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server.ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.PubSub.ProjectID != "bloom-events" {
		t.Errorf("PubSub.ProjectID = %q", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.EventsTopic != "orders-v2" {
		t.Errorf("PubSub.EventsTopic = %q", cfg.PubSub.EventsTopic)
	}
	if cfg.Listing.MaxPageSize != 50 {
		t.Errorf("Listing.MaxPageSize = %d", cfg.Listing.MaxPageSize)
	}
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing fields = %v", validation.Fields())
	}
}

func TestLoadResolvesGatewaySecret(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID":   "bloom-test",
			"API_GATEWAY_WEBHOOK_SECRET": "sm://projects/p/secrets/gateway/versions/latest",
		}),
		WithSecretResolver(SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			if ref != "secret://projects/p/secrets/gateway/versions/latest" {
				t.Fatalf("unexpected ref %q", ref)
			}
			return "sk-resolved", nil
		})),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.WebhookSecret != "sk-resolved" {
		t.Errorf("WebhookSecret = %q", cfg.Gateway.WebhookSecret)
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID":   "bloom-test",
			"API_GATEWAY_WEBHOOK_SECRET": "secret://projects/p/secrets/gateway/versions/1",
		}),
		WithSecretResolver(SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", errors.New("access denied")
		})),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("err = %v, want SecretError", err)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport API_SERVER_PORT=7070\nAPI_FIRESTORE_PROJECT_ID=\"bloom-local\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(path),
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "bloom-local" {
		t.Errorf("Firestore.ProjectID = %q", cfg.Firestore.ProjectID)
	}
}
