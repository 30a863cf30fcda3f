package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sophia.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom is Load with an explicit YAML path.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg. The conventional
// DATABASE_URL, REDIS_URL and NATS_URL are honored; SOPHIA_* wins.
func loadEnv(cfg *Config) {
	// Server
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Port, "SOPHIA_PORT")
	setString(&cfg.Server.CORSOrigin, "SOPHIA_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "SOPHIA_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.BodyLimit, "SOPHIA_BODY_LIMIT")
	setDuration(&cfg.Server.ShutdownTimeout, "SOPHIA_SHUTDOWN_TIMEOUT")
	setDuration(&cfg.Server.IdempotencyTTL, "SOPHIA_IDEMPOTENCY_TTL")

	// Postgres
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setString(&cfg.Postgres.DSN, "SOPHIA_POSTGRES_DSN")
	setInt32(&cfg.Postgres.MaxConns, "SOPHIA_POSTGRES_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SOPHIA_POSTGRES_MIN_CONNS")
	setBool(&cfg.Postgres.AutoMigrate, "SOPHIA_POSTGRES_AUTO_MIGRATE")

	// Redis / NATS
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.URL, "SOPHIA_REDIS_URL")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.URL, "SOPHIA_NATS_URL")

	// Cache / queue
	setInt64(&cfg.Cache.L1MaxBytes, "SOPHIA_CACHE_L1_MAX_BYTES")
	setDuration(&cfg.Cache.L1TTL, "SOPHIA_CACHE_L1_TTL")
	setString(&cfg.Cache.L2, "SOPHIA_CACHE_L2")
	setString(&cfg.Cache.KVBucket, "SOPHIA_CACHE_KV_BUCKET")
	setDuration(&cfg.Cache.QueryTTL, "SOPHIA_CACHE_QUERY_TTL")
	setString(&cfg.Queue.Backend, "SOPHIA_QUEUE_BACKEND")

	// Agents and decisions
	setString(&cfg.Coordinator.Name, "SOPHIA_COORDINATOR_NAME")
	setString(&cfg.Coordinator.FallbackName, "SOPHIA_COORDINATOR_FALLBACK")
	setString(&cfg.Coordinator.LeadAgent, "SOPHIA_LEAD_AGENT")
	setString(&cfg.Decisions.Mode, "SOPHIA_DECISION_MODE")

	// LLM
	setString(&cfg.LLM.URL, "SOPHIA_LLM_URL")
	setString(&cfg.LLM.APIKey, "SOPHIA_LLM_API_KEY")
	setString(&cfg.LLM.Model, "SOPHIA_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "SOPHIA_LLM_TIMEOUT")

	// Notifications and webhooks
	setString(&cfg.Notify.SlackWebhookURL, "SOPHIA_SLACK_WEBHOOK_URL")
	setString(&cfg.Notify.DiscordWebhookURL, "SOPHIA_DISCORD_WEBHOOK_URL")
	setString(&cfg.Notify.SMTP.Host, "SOPHIA_SMTP_HOST")
	setInt(&cfg.Notify.SMTP.Port, "SOPHIA_SMTP_PORT")
	setString(&cfg.Notify.SMTP.From, "SOPHIA_SMTP_FROM")
	setString(&cfg.Notify.SMTP.Password, "SOPHIA_SMTP_PASSWORD")
	if v := os.Getenv("SOPHIA_SMTP_TO"); v != "" {
		cfg.Notify.SMTP.To = strings.Split(v, ",")
	}
	setString(&cfg.Webhook.Token, "SOPHIA_WEBHOOK_TOKEN")

	// Rate limiting / breaker
	setFloat64(&cfg.Rate.RequestsPerSecond, "SOPHIA_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SOPHIA_RATE_BURST")
	setInt(&cfg.Breaker.MaxFailures, "SOPHIA_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SOPHIA_BREAKER_TIMEOUT")

	// Cron
	setBool(&cfg.Cron.Enabled, "SOPHIA_CRON_ENABLED")
	setDuration(&cfg.Cron.MetricsInterval, "SOPHIA_CRON_METRICS_INTERVAL")
	setDuration(&cfg.Cron.SyncInterval, "SOPHIA_CRON_SYNC_INTERVAL")
	setDuration(&cfg.Cron.AnomalyInterval, "SOPHIA_CRON_ANOMALY_INTERVAL")
	setDuration(&cfg.Cron.OpenOrderInterval, "SOPHIA_CRON_OPEN_ORDER_INTERVAL")
	setDuration(&cfg.Cron.HeartbeatInterval, "SOPHIA_CRON_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Cron.MaxInitialDelay, "SOPHIA_CRON_MAX_INITIAL_DELAY")

	// OTEL
	setBool(&cfg.OTEL.Enabled, "SOPHIA_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "SOPHIA_OTEL_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "SOPHIA_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "SOPHIA_OTEL_SAMPLE_RATE")

	// Logging
	setString(&cfg.Logging.Level, "SOPHIA_LOG_LEVEL")
	setBool(&cfg.Logging.Async, "SOPHIA_LOG_ASYNC")
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if cfg.Coordinator.Name == "" {
		return errors.New("coordinator.name is required")
	}

	switch cfg.Queue.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.URL == "" {
			return errors.New("queue.backend redis requires redis.url")
		}
	default:
		return fmt.Errorf("queue.backend must be redis or memory, got %q", cfg.Queue.Backend)
	}

	switch cfg.Cache.L2 {
	case "none", "":
	case "redis":
		if cfg.Redis.URL == "" {
			return errors.New("cache.l2 redis requires redis.url")
		}
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("cache.l2 nats requires nats.url")
		}
	default:
		return fmt.Errorf("cache.l2 must be redis, nats or none, got %q", cfg.Cache.L2)
	}

	switch cfg.Decisions.Mode {
	case "semi-auto", "auto":
	default:
		return fmt.Errorf("decisions.mode must be semi-auto or auto, got %q", cfg.Decisions.Mode)
	}

	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
