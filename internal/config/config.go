// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session storage backends accepted by SESSION_STORE.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the reminders backend base URL (e.g. https://api.example.com).
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// APITimeout is the per-request HTTP timeout (e.g. "15s").
	APITimeout string `mapstructure:"API_TIMEOUT"`
	// RefreshLead is how long before token expiry the refresh task fires (e.g. "5m").
	RefreshLead string `mapstructure:"REFRESH_LEAD"`
	// RefreshPath is the backend refresh endpoint; empty means the backend has none and refresh always fails.
	RefreshPath string `mapstructure:"REFRESH_PATH"`
	// LoginURL is where the user is sent when the session ends.
	LoginURL string `mapstructure:"LOGIN_URL"`

	// SessionStore selects where the session keys are persisted: file, memory, redis or postgres.
	SessionStore string `mapstructure:"SESSION_STORE"`
	// SessionFile is the JSON file used by the file store; defaults to ~/.remindme/session.json.
	SessionFile string `mapstructure:"SESSION_FILE"`
	// RedisAddr is host:port of the Redis server for the redis store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// RedisKeyPrefix namespaces session keys in a shared Redis.
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`
	// DatabaseURL is the Postgres DSN for the postgres store and cmd/migrate.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "console" or "json".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"SERVICE_NAME"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses for session events.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for session events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of cmd/worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL, when set, makes session events also go straight to Loki (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// MetricsAddr is the listen address for /metrics (remindctl watch, devapi).
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	// DevAPIAddr is the HTTP listen address of the development backend.
	DevAPIAddr string `mapstructure:"DEVAPI_ADDR"`
	// DevAPIGRPCAddr is the optional gRPC health listen address of the development backend.
	DevAPIGRPCAddr string `mapstructure:"DEVAPI_GRPC_ADDR"`
	// DevAPITokenSecret is the HMAC secret used by the development backend to sign tokens.
	DevAPITokenSecret string `mapstructure:"DEVAPI_TOKEN_SECRET"`
	// DevAPITokenTTL is the lifetime of tokens issued by the development backend (e.g. "1h").
	DevAPITokenTTL string `mapstructure:"DEVAPI_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4 to 31) for the development backend; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("API_TIMEOUT", "15s")
	v.SetDefault("REFRESH_LEAD", "5m")
	v.SetDefault("REFRESH_PATH", "")
	v.SetDefault("LOGIN_URL", "/login")
	v.SetDefault("SESSION_STORE", StoreFile)
	v.SetDefault("SESSION_FILE", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "remindme:")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("SERVICE_NAME", "remindctl")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "remindme-session-events")
	v.SetDefault("KAFKA_GROUP_ID", "remindme-telemetry-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("DEVAPI_ADDR", ":8080")
	v.SetDefault("DEVAPI_GRPC_ADDR", "")
	v.SetDefault("DEVAPI_TOKEN_SECRET", "")
	v.SetDefault("DEVAPI_TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("config: API_BASE_URL must be an absolute URL")
	}

	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	switch cfg.SessionStore {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when SESSION_STORE=redis")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when SESSION_STORE=postgres")
		}
	default:
		return nil, errors.New("config: SESSION_STORE must be one of file, memory, redis, postgres")
	}

	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, errors.New("config: LOG_FORMAT must be console or json")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.Env == "production" && cfg.DevAPITokenSecret == "" {
		return nil, errors.New("config: DEVAPI_TOKEN_SECRET must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// Timeout parses APITimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.APITimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// Lead parses RefreshLead as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) Lead() time.Duration {
	d, err := time.ParseDuration(c.RefreshLead)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// TokenTTL parses DevAPITokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.DevAPITokenTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SessionFilePath returns SessionFile, or ~/.remindme/session.json when unset.
func (c *Config) SessionFilePath() string {
	if c.SessionFile != "" {
		return c.SessionFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".remindme", "session.json")
	}
	return filepath.Join(home, ".remindme", "session.json")
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka emitter is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
