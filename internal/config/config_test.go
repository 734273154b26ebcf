package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"BACKEND_API_URL", "API_URL", "RESERVATION_LIMIT", "MODAL_SUPPRESSION_WINDOW", "REDIS_HOST", "REDIS_PORT", "REDIS_ADDR", "OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT", "R2_ACCOUNT_ID"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	if cfg.HTTPAddr != ":8087" || cfg.ReservationLimit != 100 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ModalSuppressionWindow != 900*time.Millisecond {
		t.Fatalf("unexpected suppression window %s", cfg.ModalSuppressionWindow)
	}
	if cfg.RedisAddr != "" || cfg.ObjectStoreEnabled() {
		t.Fatalf("optional backends must be disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_API_URL", "")
	t.Setenv("API_URL", "https://api.example.com/api")
	t.Setenv("RESERVATION_LIMIT", "-5")
	t.Setenv("MODAL_SUPPRESSION_WINDOW", "2s")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "yes")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("OBJECT_STORE_BUCKET", "tickets")

	cfg := Load()
	if cfg.BackendAPIURL != "https://api.example.com/api" {
		t.Fatalf("expected API_URL fallback, got %q", cfg.BackendAPIURL)
	}
	if cfg.ReservationLimit != 100 {
		t.Fatalf("non-positive limit must fall back, got %d", cfg.ReservationLimit)
	}
	if cfg.ModalSuppressionWindow != 2*time.Second {
		t.Fatalf("unexpected window %s", cfg.ModalSuppressionWindow)
	}
	if cfg.RedisAddr != "cache:6380" || !cfg.RedisTLS {
		t.Fatalf("unexpected redis config %q %v", cfg.RedisAddr, cfg.RedisTLS)
	}
	if len(cfg.CorsAllowedOrigins) != 2 {
		t.Fatalf("unexpected origins %v", cfg.CorsAllowedOrigins)
	}
	if cfg.ObjectStoreEndpoint != "https://acc.r2.cloudflarestorage.com" || !cfg.ObjectStoreEnabled() {
		t.Fatalf("unexpected object store endpoint %q", cfg.ObjectStoreEndpoint)
	}
}

func TestNewRedisClientDisabledWithoutAddr(t *testing.T) {
	if NewRedisClient(Config{}) != nil {
		t.Fatalf("expected no client without an address")
	}
}
