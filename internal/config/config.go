package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	HTTPAddr string
	NodeID   int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Feed      FeedConfig
	Ingestion IngestionConfig
	Scheduler SchedulerConfig
	Redis     RedisConfig
	PubSub    PubSubConfig

	ActionPolicyFile string
	AgentRoster      string
}

// FeedConfig points at the invoice source re-read on every ingestion run.
type FeedConfig struct {
	URL                string
	Sheet              string
	Format             string
	GCSCredentialsFile string
	HTTPTimeout        time.Duration
}

type IngestionConfig struct {
	BatchSize      int
	Timeout        time.Duration
	ClassifyInline bool
	LockTTL        time.Duration
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	EnabledJobs []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PubSubConfig struct {
	ProjectID       string
	Topic           string
	CredentialsFile string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "recovery"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "recovery"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "recovery.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Feed: FeedConfig{
			URL:                strings.TrimSpace(getenv("FEED_URL", "")),
			Sheet:              strings.TrimSpace(getenv("FEED_SHEET", "")),
			Format:             strings.ToLower(strings.TrimSpace(getenv("FEED_FORMAT", ""))),
			GCSCredentialsFile: strings.TrimSpace(getenv("GCS_CREDENTIALS_FILE", "")),
			HTTPTimeout:        getenvDuration("FEED_HTTP_TIMEOUT", 60*time.Second),
		},
		Ingestion: IngestionConfig{
			BatchSize:      getenvInt("INGEST_BATCH_SIZE", 500),
			Timeout:        getenvDuration("INGEST_TIMEOUT", 10*time.Minute),
			ClassifyInline: getenvBool("INGEST_CLASSIFY_INLINE", false),
			LockTTL:        getenvDuration("INGEST_LOCK_TTL", 15*time.Minute),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Hour),
			BatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 200),
			EnabledJobs: parseList(getenv("SCHEDULER_JOBS", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:       strings.TrimSpace(getenv("PUBSUB_PROJECT_ID", "")),
			Topic:           strings.TrimSpace(getenv("PUBSUB_TOPIC", "case-actions")),
			CredentialsFile: strings.TrimSpace(getenv("PUBSUB_CREDENTIALS_FILE", "")),
		},
		ActionPolicyFile: strings.TrimSpace(getenv("ACTION_POLICY_FILE", "")),
		AgentRoster:      strings.TrimSpace(getenv("AGENT_ROSTER", "")),
	}

	return cfg
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("90s") or plain seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
