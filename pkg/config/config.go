package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the portal services read at startup.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Delivery struct {
		MaxAttempts     int      `yaml:"max_attempts"`
		BaseBackoff     Duration `yaml:"base_backoff"`
		MaxBackoff      Duration `yaml:"max_backoff"`
		ProviderTimeout Duration `yaml:"provider_timeout"`
		Concurrency     int      `yaml:"concurrency"`
	} `yaml:"delivery"`

	Export struct {
		AsyncThreshold int      `yaml:"async_threshold"`
		MaxRecords     int      `yaml:"max_records"`
		ArtifactDir    string   `yaml:"artifact_dir"`
		ArtifactTTL    Duration `yaml:"artifact_ttl"`
		Workers        int      `yaml:"workers"`
		JobTimeout     Duration `yaml:"job_timeout"`
	} `yaml:"export"`
}

// Duration parses human-readable durations ("2s", "5m") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var path = "./config.yaml"

// FilePath overrides the default config file location.
func FilePath(filePath string) {
	path = filePath
}

// ParseYAML loads and validates the config file.
func ParseYAML() (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot open file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Delivery.MaxAttempts == 0 {
		c.Delivery.MaxAttempts = 4
	}
	if c.Delivery.BaseBackoff == 0 {
		c.Delivery.BaseBackoff = Duration(2 * time.Second)
	}
	if c.Delivery.MaxBackoff == 0 {
		c.Delivery.MaxBackoff = Duration(5 * time.Minute)
	}
	if c.Delivery.ProviderTimeout == 0 {
		c.Delivery.ProviderTimeout = Duration(30 * time.Second)
	}
	if c.Delivery.Concurrency == 0 {
		c.Delivery.Concurrency = 8
	}
	if c.Export.AsyncThreshold == 0 {
		c.Export.AsyncThreshold = 10000
	}
	if c.Export.MaxRecords == 0 {
		c.Export.MaxRecords = 250000
	}
	if c.Export.ArtifactDir == "" {
		c.Export.ArtifactDir = "./exports"
	}
	if c.Export.ArtifactTTL == 0 {
		c.Export.ArtifactTTL = Duration(72 * time.Hour)
	}
	if c.Export.Workers == 0 {
		c.Export.Workers = 2
	}
	if c.Export.JobTimeout == 0 {
		c.Export.JobTimeout = Duration(10 * time.Minute)
	}
}

func (c *Config) validate() error {
	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port must be 1-65535")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq.host is required")
	}
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		return fmt.Errorf("rabbitmq.port must be 1-65535")
	}
	if c.RabbitMQ.User == "" {
		return fmt.Errorf("rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		return fmt.Errorf("rabbitmq.password is required")
	}

	// Redis is optional; when a host is given the port must be sane.
	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		return fmt.Errorf("redis.port must be 1-65535")
	}

	if c.Delivery.MaxAttempts < 1 {
		return fmt.Errorf("delivery.max_attempts must be at least 1")
	}
	if c.Export.AsyncThreshold > c.Export.MaxRecords {
		return fmt.Errorf("export.async_threshold cannot exceed export.max_records")
	}

	return nil
}

// PrintYAMLHelp explains the expected config file layout.
func PrintYAMLHelp() {
	fmt.Printf(`
YAML Config File Help

The configuration file supports five sections: database, rabbitmq, redis,
delivery and export. database and rabbitmq are required.

Example config.yaml:

database:
  host: "localhost"          # Postgres host
  port: 5432                 # Postgres port (integer 1-65535)
  user: "postgres"           # Postgres username
  password: "secret"         # Postgres password
  database: "costume_portal" # Database name
  sslmode: "disable"         # SSL mode: disable/require

rabbitmq:
  host: "localhost"          # RabbitMQ host
  port: 5672                 # RabbitMQ port
  user: "guest"              # RabbitMQ username
  password: "guest"          # RabbitMQ password

redis:                       # Optional; export jobs fall back to in-memory tracking
  host: "localhost"
  port: 6379
  password: ""
  db: 0

delivery:
  max_attempts: 4            # Retry budget per notification
  base_backoff: 2s           # First retry delay, doubled per attempt
  max_backoff: 5m            # Backoff ceiling
  provider_timeout: 30s      # Per provider call
  concurrency: 8             # Parallel deliveries across notifications

export:
  async_threshold: 10000     # Result sets above this run as background jobs
  max_records: 250000        # Absolute cap; larger requests are rejected
  artifact_dir: "./exports"  # Where generated files land
  artifact_ttl: 72h          # Artifact expiry
  workers: 2                 # Background export workers
  job_timeout: 10m           # Per export job
`)
}
