package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sungwon/move-booking/internal/queue"
)

// Config holds all application configuration.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Queue      queue.Config     `mapstructure:"queue"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Mail       MailConfig       `mapstructure:"mail"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// OutboxConfig controls the relay that moves committed outbox rows to the queue.
type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	// Embedded runs the relay inside the api-server process.
	Embedded bool `mapstructure:"embedded"`
}

// EnrichmentConfig holds the two enrichment sources.
type EnrichmentConfig struct {
	Facts  FactsConfig  `mapstructure:"facts"`
	Images ImagesConfig `mapstructure:"images"`
}

// FactsConfig configures the generative text service used for location facts.
type FactsConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ImagesConfig configures the image search service.
type ImagesConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	PerPage  int           `mapstructure:"per_page"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	Domain    string        `mapstructure:"domain"`
	From      string        `mapstructure:"from"`
	Subject   string        `mapstructure:"subject"`
	Timeout   time.Duration `mapstructure:"timeout"`
	OutputDir string        `mapstructure:"output_dir"`

	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// WorkerConfig holds settings for the queue-worker process itself.
type WorkerConfig struct {
	MetricsAddr         string        `mapstructure:"metrics_addr"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// AdminConfig holds the admin API credential.
type AdminConfig struct {
	// APIKeyHash is the bcrypt hash of the admin bearer key. Empty disables
	// the admin routes.
	APIKeyHash string `mapstructure:"api_key_hash"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MOVE_BOOKING_ override file values.
// For example, MOVE_BOOKING_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("MOVE_BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so secrets
	// that usually stay out of the yaml need explicit bindings.
	for _, key := range []string{
		"enrichment.facts.api_key",
		"enrichment.images.api_key",
		"mail.api_key",
		"mail.smtp_password",
		"admin.api_key_hash",
		"queue.redis_password",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration that would make a process fail later in a
// less obvious way.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Queue.Name == "" {
		errs = append(errs, errors.New("queue.name is required"))
	}
	if c.Queue.Concurrency < 0 || c.Queue.BatchSize < 0 {
		errs = append(errs, errors.New("queue.concurrency and queue.batch_size must not be negative"))
	}
	if c.Mail.From == "" {
		errs = append(errs, errors.New("mail.from is required"))
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the API server listens on.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
