package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Sink       SinkConfig       `mapstructure:"sink"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BodyLimitMB  int    `mapstructure:"body_limit_mb"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// ClassifierConfig configures the vision model client. It is handed to the
// classifier constructor; nothing reads it globally.
type ClassifierConfig struct {
	Backend         string `mapstructure:"backend"` // ollama | openai | none
	URL             string `mapstructure:"url"`
	Model           string `mapstructure:"model"`
	APIKey          string `mapstructure:"api_key"`
	Prompt          string `mapstructure:"prompt"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxDimension    int    `mapstructure:"max_dimension"`
	JPEGQuality     int    `mapstructure:"jpeg_quality"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SinkConfig struct {
	// OutputPath receives the latest record as JSON. Empty disables the file sink.
	OutputPath string `mapstructure:"output_path"`
}

// DefaultPrompt asks the model for one of the known labels or nothing.
const DefaultPrompt = "Does this image show a pothole or garbage? If yes, reply only with 'pothole' or 'garbage'. If no, return null."

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CIVICLENS_DATABASE_HOST → database.host
	v.SetEnvPrefix("CIVICLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.body_limit_mb", 20)
	v.SetDefault("server.allow_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "civiclens")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "civiclens")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("classifier.backend", "ollama")
	v.SetDefault("classifier.url", "http://localhost:11434")
	v.SetDefault("classifier.model", "llava:7b")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.prompt", DefaultPrompt)
	v.SetDefault("classifier.timeout_seconds", 120)
	v.SetDefault("classifier.max_dimension", 1024)
	v.SetDefault("classifier.jpeg_quality", 85)
	v.SetDefault("classifier.cache_ttl_seconds", 86400)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "civiclens-uploads")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.prefix", "uploads/")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "civiclens-reclassify")
	v.SetDefault("sink.output_path", "output/output.json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, "server.body_limit_mb must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	switch c.Classifier.Backend {
	case "ollama", "openai":
		if c.Classifier.URL == "" {
			errs = append(errs, "classifier.url is required")
		}
		if c.Classifier.Model == "" {
			errs = append(errs, "classifier.model is required")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("classifier.backend must be ollama, openai or none, got %q", c.Classifier.Backend))
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		errs = append(errs, "classifier.timeout_seconds must be positive")
	}
	if c.Classifier.JPEGQuality < 1 || c.Classifier.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("classifier.jpeg_quality must be 1-100, got %d", c.Classifier.JPEGQuality))
	}

	if c.Storage.Enabled {
		if c.Storage.Endpoint == "" {
			errs = append(errs, "storage.endpoint is required when storage is enabled")
		}
		if c.Storage.Bucket == "" {
			errs = append(errs, "storage.bucket is required when storage is enabled")
		}
	}
	if c.Temporal.Enabled {
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required when temporal is enabled")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required when temporal is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Masked returns a copy of c with secrets replaced, for printing.
func (c Config) Masked() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Database.Password = mask(c.Database.Password)
	c.Classifier.APIKey = mask(c.Classifier.APIKey)
	c.Storage.AccessKey = mask(c.Storage.AccessKey)
	c.Storage.SecretKey = mask(c.Storage.SecretKey)
	return c
}
