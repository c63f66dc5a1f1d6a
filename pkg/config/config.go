package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Ops server (health / metrics / status)
	Port string
	Env  string `validate:"oneof=development staging production"`

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Price source (Yahoo Finance chart API)
	PriceSource PriceSourceConfig

	// Forecasting pipeline
	Forecast ForecastConfig

	// Scheduling daemon
	Daemon DaemonConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string `validate:"required"`

	// Connection Pool
	MaxConns        int `validate:"gte=1"`
	MinConns        int `validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PriceSourceConfig holds the historical price provider configuration
type PriceSourceConfig struct {
	BaseURL        string        `validate:"required,url"`
	RequestsPerSec float64       `validate:"gt=0"`
	CacheTTL       time.Duration `validate:"gte=0"`
	Timeout        time.Duration `validate:"gt=0"`
}

// ForecastConfig holds windowing / training / rollout configuration
type ForecastConfig struct {
	SequenceLength  int `validate:"gte=2"`
	Horizon         int `validate:"gte=1,lte=12"`
	HistoryStart    time.Time
	ModelDir        string `validate:"required"`
	ModelConfigPath string // optional YAML hyperparameter file
	MaxGapDays      int    `validate:"gte=1"`
}

// DaemonConfig holds the scheduling loop configuration
type DaemonConfig struct {
	BatchSize         int           `validate:"gte=1"`
	QuietStart        string        `validate:"omitempty,datetime=15:04"`
	QuietEnd          string        `validate:"omitempty,datetime=15:04"`
	Timezone          string        `validate:"required"`
	ShortSleep        time.Duration `validate:"gt=0"`
	LongSleep         time.Duration `validate:"gt=0"`
	UnitTimeout       time.Duration `validate:"gt=0"`
	MentionWindowDays int           `validate:"gte=1"`
	MentionWeight     float64       `validate:"gt=0"`
	MaxDailyFailures  int           `validate:"gte=1"`
	RetentionDays     int           `validate:"gte=1"`
}

// Location resolves the daemon timezone ("Local" means the host zone)
func (d DaemonConfig) Location() (*time.Location, error) {
	if d.Timezone == "" || d.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(d.Timezone)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Ops server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		PriceSource: PriceSourceConfig{
			BaseURL:        getEnv("PRICE_SOURCE_URL", "https://query1.finance.yahoo.com"),
			RequestsPerSec: getEnvAsFloat("PRICE_SOURCE_RPS", 2),
			CacheTTL:       getEnvAsDuration("PRICE_CACHE_TTL", "6h"),
			Timeout:        getEnvAsDuration("PRICE_SOURCE_TIMEOUT", "30s"),
		},

		Forecast: ForecastConfig{
			SequenceLength:  getEnvAsInt("SEQUENCE_LENGTH", 60),
			Horizon:         getEnvAsInt("FORECAST_HORIZON", 12),
			HistoryStart:    getEnvAsDate("HISTORY_START", "2010-01-01"),
			ModelDir:        getEnv("MODEL_DIR", "data/lstm_models"),
			ModelConfigPath: getEnv("MODEL_CONFIG_PATH", ""),
			MaxGapDays:      getEnvAsInt("MAX_GAP_DAYS", 5),
		},

		Daemon: DaemonConfig{
			BatchSize:         getEnvAsInt("BATCH_SIZE", 10),
			QuietStart:        getEnv("QUIET_START", "23:00"),
			QuietEnd:          getEnv("QUIET_END", "00:05"),
			Timezone:          getEnv("DAEMON_TIMEZONE", "Local"),
			ShortSleep:        getEnvAsDuration("SHORT_SLEEP", "1m"),
			LongSleep:         getEnvAsDuration("LONG_SLEEP", "30m"),
			UnitTimeout:       getEnvAsDuration("UNIT_TIMEOUT", "20m"),
			MentionWindowDays: getEnvAsInt("MENTION_WINDOW_DAYS", 30),
			MentionWeight:     getEnvAsFloat("MENTION_WEIGHT", 1.0),
			MaxDailyFailures:  getEnvAsInt("MAX_DAILY_FAILURES", 3),
			RetentionDays:     getEnvAsInt("FORECAST_RETENTION_DAYS", 2),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// Quiet hours are all-or-nothing
	if (c.Daemon.QuietStart == "") != (c.Daemon.QuietEnd == "") {
		return fmt.Errorf("QUIET_START and QUIET_END must be set together")
	}

	if _, err := c.Daemon.Location(); err != nil {
		return fmt.Errorf("invalid DAEMON_TIMEZONE: %w", err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// --config 플래그로 지정된 파일 우선
	if custom := os.Getenv("ENV_FILE"); custom != "" {
		paths = append([]string{custom}, paths...)
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsDate(key string, defaultValue string) time.Time {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	date, err := time.Parse("2006-01-02", valueStr)
	if err != nil {
		date, _ = time.Parse("2006-01-02", defaultValue)
	}

	return date
}
