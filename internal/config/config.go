package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Ledger   LedgerConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

// KafkaConfig holds Kafka configuration. An empty broker list disables the
// rollup producer and consumer.
type KafkaConfig struct {
	Brokers     []string
	RollupTopic string
	GroupID     string
}

// RedisConfig holds the security quote cache settings. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration
}

// LedgerConfig holds the ledger tunables. These are the only settings the
// optional YAML file may override.
type LedgerConfig struct {
	Currency          string        `yaml:"currency"`
	PriceFreshness    time.Duration `yaml:"price_freshness"`
	MaxCreateAttempts int           `yaml:"max_create_attempts"`
	RollupInterval    time.Duration `yaml:"rollup_interval"`
}

// Load reads configuration from a local .env file (if any), the environment,
// and finally the YAML file named by LEDGER_CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "trade_ledger"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			RollupTopic: getEnv("LEDGER_ROLLUP_TOPIC", "ledger-rollups"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "trade-ledger"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Ledger: LedgerConfig{
			Currency: getEnv("LEDGER_CURRENCY", "INR"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.PriceTTL, err = getEnvDuration("REDIS_PRICE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Ledger.PriceFreshness, err = getEnvDuration("LEDGER_PRICE_FRESHNESS", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Ledger.MaxCreateAttempts, err = getEnvInt("LEDGER_MAX_CREATE_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Ledger.RollupInterval, err = getEnvDuration("LEDGER_ROLLUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		if err := cfg.Ledger.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the fields present in a YAML tunables file. Durations
// use Go syntax ("90m", "24h").
func (l *LedgerConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read ledger config file: %w", err)
	}
	if err := yaml.Unmarshal(data, l); err != nil {
		return fmt.Errorf("failed to parse ledger config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the values Load cannot default away
func (c *Config) Validate() error {
	if c.Ledger.Currency == "" {
		return fmt.Errorf("ledger currency is required")
	}
	if c.Ledger.PriceFreshness <= 0 {
		return fmt.Errorf("ledger price freshness must be positive")
	}
	if c.Ledger.MaxCreateAttempts < 1 {
		return fmt.Errorf("ledger max create attempts must be at least 1")
	}
	if c.Ledger.RollupInterval < 0 {
		return fmt.Errorf("ledger rollup interval must not be negative")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the HTTP listen address
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
