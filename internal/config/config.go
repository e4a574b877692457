package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Data      DataConfig      `mapstructure:"data"`
	Backends  BackendsConfig  `mapstructure:"backends"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	InfluxDB  InfluxDBConfig  `mapstructure:"influxdb"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
}

// HTTPConfig holds dashboard API server configuration
type HTTPConfig struct {
	Listen         string        `mapstructure:"listen"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DataConfig holds the reference table locations
type DataConfig struct {
	ZoneTable   string `mapstructure:"zone_table"`
	HistoryFile string `mapstructure:"history_file"`
}

// BackendsConfig holds the prediction model server endpoints
type BackendsConfig struct {
	XGBoostURL       string        `mapstructure:"xgboost_url"`
	NeuralProphetURL string        `mapstructure:"neuralprophet_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// DashboardConfig holds dashboard defaults
type DashboardConfig struct {
	DefaultBackend string `mapstructure:"default_backend"`
	DefaultZone    string `mapstructure:"default_zone"`
	DefaultHour    int    `mapstructure:"default_hour"`
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	GroupID       string        `mapstructure:"group_id"`
	ConsumerCount int           `mapstructure:"consumer_count"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	PublishRuns   bool          `mapstructure:"publish_runs"`
	ForecastTopic string        `mapstructure:"forecast_topic"`
}

// InfluxDBConfig holds InfluxDB-related configuration
type InfluxDBConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Org     string `mapstructure:"org"`
	Token   string `mapstructure:"token"`
	Bucket  string `mapstructure:"bucket"`
}

// ProcessorConfig holds ingest processor configuration
type ProcessorConfig struct {
	WorkerCount   int           `mapstructure:"worker_count"`
	QueueSize     int           `mapstructure:"queue_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// CacheConfig holds forecast memoization configuration
type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	Prefix    string        `mapstructure:"prefix"`
}

// LedgerConfig holds forecast run ledger configuration
type LedgerConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),
		HTTP: HTTPConfig{
			Listen:         getEnv("HTTP_LISTEN", ":8080"),
			RequestTimeout: getEnvDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),
			MaxUploadBytes: int64(getEnvInt("HTTP_MAX_UPLOAD_BYTES", 32<<20)),
		},
		Data: DataConfig{
			ZoneTable:   getEnv("DATA_ZONE_TABLE", "Data/zone_mapping_hist_peak.csv"),
			HistoryFile: getEnv("DATA_HISTORY_FILE", "Data/hrl_load_metered_7.csv"),
		},
		Backends: BackendsConfig{
			XGBoostURL:       getEnv("BACKEND_XGBOOST_URL", "http://localhost:9001"),
			NeuralProphetURL: getEnv("BACKEND_NEURALPROPHET_URL", "http://localhost:9002"),
			Timeout:          getEnvDuration("BACKEND_TIMEOUT", 2*time.Minute),
		},
		Dashboard: DashboardConfig{
			DefaultBackend: getEnv("DASHBOARD_DEFAULT_BACKEND", "XGBoost"),
			DefaultZone:    getEnv("DASHBOARD_DEFAULT_ZONE", "AEP"),
			DefaultHour:    getEnvInt("DASHBOARD_DEFAULT_HOUR", 12),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
			Brokers:       getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:         getEnv("KAFKA_TOPIC", "hrl-load-metered"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "smart-grid-load-forecast"),
			ConsumerCount: getEnvInt("KAFKA_CONSUMER_COUNT", 2),
			BatchSize:     getEnvInt("KAFKA_BATCH_SIZE", 1000),
			BatchTimeout:  getEnvDuration("KAFKA_BATCH_TIMEOUT", 1*time.Second),
			PublishRuns:   getEnvBool("KAFKA_PUBLISH_RUNS", false),
			ForecastTopic: getEnv("KAFKA_FORECAST_TOPIC", "zone-load-forecasts"),
		},
		InfluxDB: InfluxDBConfig{
			Enabled: getEnvBool("INFLUXDB_ENABLED", false),
			URL:     getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Org:     getEnv("INFLUXDB_ORG", "grid"),
			Token:   getEnv("INFLUX_TOKEN", ""),
			Bucket:  getEnv("INFLUXDB_BUCKET", "zone-load"),
		},
		Processor: ProcessorConfig{
			WorkerCount:   getEnvInt("PROCESSOR_WORKER_COUNT", 4),
			QueueSize:     getEnvInt("PROCESSOR_QUEUE_SIZE", 10000),
			FlushInterval: getEnvDuration("PROCESSOR_FLUSH_INTERVAL", 15*time.Second),
		},
		Cache: CacheConfig{
			Driver:    getEnv("CACHE_DRIVER", "memory"),
			TTL:       getEnvDuration("CACHE_TTL", 30*time.Minute),
			RedisAddr: getEnv("CACHE_REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("CACHE_REDIS_DB", 0),
			Prefix:    getEnv("CACHE_PREFIX", "loadforecast:"),
		},
		Ledger: LedgerConfig{
			PostgresDSN: getEnv("LEDGER_POSTGRES_DSN", ""),
		},
	}
	return cfg, cfg.Validate()
}

// LoadFile loads the environment configuration and overlays the given JSON or
// YAML file on top of it. An empty path skips the overlay.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil || path == "" {
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Dashboard.DefaultZone == "" {
		return fmt.Errorf("dashboard.default_zone must not be empty")
	}
	if c.Dashboard.DefaultHour < 0 || c.Dashboard.DefaultHour > 23 {
		return fmt.Errorf("dashboard.default_hour must be within 0..23, got %d", c.Dashboard.DefaultHour)
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Kafka.Enabled && c.Kafka.ConsumerCount < 1 {
		return fmt.Errorf("kafka.consumer_count must be at least 1")
	}
	if c.Processor.WorkerCount < 1 {
		return fmt.Errorf("processor.worker_count must be at least 1")
	}
	return nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
