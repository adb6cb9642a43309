package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Log      LogConfig
	Fees     FeesConfig
	Webhooks WebhooksConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

// FeesConfig carries the platform-wide defaults applied when a subscription
// is created. Existing subscriptions keep the fee policy persisted on their
// row and are never affected by later changes here.
type FeesConfig struct {
	DefaultModel         string
	DefaultMode          string
	SplitTotalRateBps    int32
	CrossBorderBufferBps int32
	FlatRateBps          int32
	PlatformCountry      string
	MinFeeCents          int64
}

type WebhooksConfig struct {
	LockTTL                time.Duration
	NotifyURL              string
	NotifyHTTPTimeout      time.Duration
	UnlockPaymentThreshold int32
	ReconcileToleranceBps  int32
	AuditWindow            time.Duration
}

type JobsConfig struct {
	ReconcileInterval time.Duration
	JobBatchSize      int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "creator-billing-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Fees: FeesConfig{
			DefaultModel:         getEnv("FEES_DEFAULT_MODEL", "split"),
			DefaultMode:          getEnv("FEES_DEFAULT_MODE", "absorb"),
			SplitTotalRateBps:    int32(getIntEnv("FEES_SPLIT_TOTAL_RATE_BPS", 900)),
			CrossBorderBufferBps: int32(getIntEnv("FEES_CROSS_BORDER_BUFFER_BPS", 150)),
			FlatRateBps:          int32(getIntEnv("FEES_FLAT_RATE_BPS", 1000)),
			PlatformCountry:      getEnv("FEES_PLATFORM_COUNTRY", "US"),
			MinFeeCents:          int64(getIntEnv("FEES_MIN_FEE_CENTS", 50)),
		},
		Webhooks: WebhooksConfig{
			LockTTL:                getSecondsEnv("WEBHOOKS_LOCK_TTL_SECONDS", 30*time.Second),
			NotifyURL:              getEnv("WEBHOOKS_NOTIFY_URL", ""),
			NotifyHTTPTimeout:      getSecondsEnv("WEBHOOKS_NOTIFY_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			UnlockPaymentThreshold: int32(getIntEnv("WEBHOOKS_UNLOCK_PAYMENT_THRESHOLD", 3)),
			ReconcileToleranceBps:  int32(getIntEnv("WEBHOOKS_RECONCILE_TOLERANCE_BPS", 10)),
			AuditWindow:            getMinutesEnv("WEBHOOKS_AUDIT_WINDOW_MINUTES", 120*time.Minute),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("JOBS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
			JobBatchSize:      int32(getIntEnv("JOBS_BATCH_SIZE", 100)),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
