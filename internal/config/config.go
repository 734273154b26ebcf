package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	BackendAPIURL  string
	BackendTimeout time.Duration
	JWTSecret      string

	InternalAPISecret string

	ReservationLimit        int
	ModalSuppressionWindow  time.Duration
	SessionIdleTTL          time.Duration
	SessionSweepInterval    time.Duration
	CatalogCacheTTL         time.Duration
	WSHeartbeatInterval     time.Duration
	CorsAllowedOrigins      []string
	DatabaseURL             string
	RabbitMQURL             string
	RabbitMQWorkerMode      string
	BackendEventsExchange   string
	ConsoleEventsExchange   string
	ReservationRefreshQueue string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	ObjectStoreEndpoint        string
	ObjectStoreRegion          string
	ObjectStoreAccessKeyID     string
	ObjectStoreSecretAccessKey string
	ObjectStoreBucket          string
	ObjectStorePublicBaseURL   string
	ObjectStoreStorageClass    string
}

func Load() Config {
	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),
		HTTPAddr: getEnv("HTTP_ADDR", ":8087"),

		BackendAPIURL:  getEnvFirst([]string{"BACKEND_API_URL", "API_URL"}, ""),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		InternalAPISecret: getEnv("INTERNAL_API_SECRET", ""),

		ReservationLimit:        int(getEnvInt64("RESERVATION_LIMIT", 100)),
		ModalSuppressionWindow:  getEnvDuration("MODAL_SUPPRESSION_WINDOW", 900*time.Millisecond),
		SessionIdleTTL:          getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepInterval:    getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		CatalogCacheTTL:         getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		WSHeartbeatInterval:     getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
		CorsAllowedOrigins:      splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		RabbitMQURL:             getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode:      getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		BackendEventsExchange:   getEnv("BACKEND_EVENTS_EXCHANGE", "resto.events"),
		ConsoleEventsExchange:   getEnv("CONSOLE_EVENTS_EXCHANGE", "console.events"),
		ReservationRefreshQueue: getEnv("RESERVATION_REFRESH_QUEUE", "console.reservations.refresh"),

		RedisAddr:     redisAddr(),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       int(getEnvInt64("REDIS_DB", 0)),
		RedisTLS:      getEnvBool("REDIS_TLS", false),

		// Object store (Cloudflare R2 / S3-compatible)
		ObjectStoreEndpoint:        getEnvFirst([]string{"OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"}, ""),
		ObjectStoreRegion:          getEnvFirst([]string{"OBJECT_STORE_REGION", "R2_REGION"}, "auto"),
		ObjectStoreAccessKeyID:     getEnvFirst([]string{"OBJECT_STORE_ACCESS_KEY_ID", "R2_ACCESS_KEY_ID"}, ""),
		ObjectStoreSecretAccessKey: getEnvFirst([]string{"OBJECT_STORE_SECRET_ACCESS_KEY", "R2_SECRET_ACCESS_KEY"}, ""),
		ObjectStoreBucket:          getEnvFirst([]string{"OBJECT_STORE_BUCKET", "R2_BUCKET"}, ""),
		ObjectStorePublicBaseURL:   getEnvFirst([]string{"OBJECT_STORE_PUBLIC_BASE_URL", "R2_PUBLIC_BASE_URL"}, ""),
		ObjectStoreStorageClass:    getEnvFirst([]string{"OBJECT_STORE_STORAGE_CLASS", "R2_STORAGE_CLASS"}, "STANDARD"),
	}

	if cfg.ReservationLimit <= 0 {
		cfg.ReservationLimit = 100
	}
	if cfg.ModalSuppressionWindow <= 0 {
		cfg.ModalSuppressionWindow = 900 * time.Millisecond
	}

	// Back-compat: allow R2_ACCOUNT_ID -> endpoint
	if strings.TrimSpace(cfg.ObjectStoreEndpoint) == "" {
		accountID := strings.TrimSpace(os.Getenv("R2_ACCOUNT_ID"))
		if accountID != "" {
			cfg.ObjectStoreEndpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
		}
	}

	return cfg
}

// ObjectStoreEnabled reports whether ticket archiving has a bucket to write to.
func (c Config) ObjectStoreEnabled() bool {
	return strings.TrimSpace(c.ObjectStoreEndpoint) != "" && strings.TrimSpace(c.ObjectStoreBucket) != ""
}

func redisAddr() string {
	host := getEnv("REDIS_HOST", "")
	port := getEnv("REDIS_PORT", "")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return getEnv("REDIS_ADDR", "")
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFirst(keys []string, fallback string) string {
	for _, k := range keys {
		value := strings.TrimSpace(os.Getenv(k))
		if value != "" {
			return value
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
