package queue

import (
	"os"
	"time"
)

// Config holds configuration for the queue system.
type Config struct {
	// Type selects the backend: "redis" (default), "sqs" or "rabbitmq".
	Type         string `mapstructure:"type"`
	Name         string `mapstructure:"name"`
	GroupName    string `mapstructure:"group_name"`
	ConsumerName string `mapstructure:"consumer_name"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	BatchSize       int           `mapstructure:"batch_size"`
	Concurrency     int           `mapstructure:"concurrency"`
	BlockTimeout    time.Duration `mapstructure:"block_timeout"`
	ClaimIdle       time.Duration `mapstructure:"claim_idle"`
	ProcessTimeout  time.Duration `mapstructure:"process_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxDeliveries is how many times a job may be handed to the worker
	// before it is dead-lettered.
	MaxDeliveries int `mapstructure:"max_deliveries"`

	SQSQueueURL   string `mapstructure:"sqs_queue_url"`
	SQSDLQueueURL string `mapstructure:"sqs_dlq_url"`
	SQSRegion     string `mapstructure:"sqs_region"`
	SQSEndpoint   string `mapstructure:"sqs_endpoint"`
	SQSWaitTime   int32  `mapstructure:"sqs_wait_time"`          // long poll seconds
	SQSVisTimeout int32  `mapstructure:"sqs_visibility_timeout"` // seconds

	RabbitMQURL string `mapstructure:"rabbitmq_url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:            "redis",
		Name:            "send-booking-email",
		GroupName:       "confirmation-workers",
		RedisAddr:       "localhost:6379",
		BatchSize:       10,
		Concurrency:     5,
		BlockTimeout:    5 * time.Second,
		ClaimIdle:       2 * time.Minute,
		ProcessTimeout:  60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxDeliveries:   5,
		SQSRegion:       "us-east-1",
		SQSWaitTime:     20,
		SQSVisTimeout:   90,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig. An empty
// consumer name falls back to the host name.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.GroupName == "" {
		c.GroupName = d.GroupName
	}
	if c.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		c.ConsumerName = host
	}
	if c.RedisAddr == "" {
		c.RedisAddr = d.RedisAddr
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = d.BlockTimeout
	}
	if c.ClaimIdle <= 0 {
		c.ClaimIdle = d.ClaimIdle
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = d.ProcessTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = d.MaxDeliveries
	}
	if c.SQSRegion == "" {
		c.SQSRegion = d.SQSRegion
	}
	if c.SQSWaitTime <= 0 {
		c.SQSWaitTime = d.SQSWaitTime
	}
	if c.SQSVisTimeout <= 0 {
		c.SQSVisTimeout = d.SQSVisTimeout
	}
	return c
}
