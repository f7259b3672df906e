package queue

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Type", cfg.Type, "redis"},
		{"Name", cfg.Name, "send-booking-email"},
		{"GroupName", cfg.GroupName, "confirmation-workers"},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"BatchSize", cfg.BatchSize, 10},
		{"Concurrency", cfg.Concurrency, 5},
		{"BlockTimeout", cfg.BlockTimeout, 5 * time.Second},
		{"ClaimIdle", cfg.ClaimIdle, 2 * time.Minute},
		{"ProcessTimeout", cfg.ProcessTimeout, 60 * time.Second},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
		{"MaxDeliveries", cfg.MaxDeliveries, 5},
		{"SQSRegion", cfg.SQSRegion, "us-east-1"},
		{"SQSWaitTime", cfg.SQSWaitTime, int32(20)},
		{"SQSVisTimeout", cfg.SQSVisTimeout, int32(90)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("DefaultConfig() %s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := Config{}.withDefaults()
		if cfg.Type != "redis" {
			t.Errorf("Type = %q, want redis", cfg.Type)
		}
		if cfg.BatchSize != 10 {
			t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
		}
		if cfg.MaxDeliveries != 5 {
			t.Errorf("MaxDeliveries = %d, want 5", cfg.MaxDeliveries)
		}
		if cfg.ConsumerName == "" {
			t.Error("ConsumerName should fall back to the host name")
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := Config{
			Type:          "sqs",
			Name:          "custom",
			ConsumerName:  "worker-7",
			BatchSize:     3,
			Concurrency:   2,
			MaxDeliveries: 9,
		}.withDefaults()
		if cfg.Type != "sqs" || cfg.Name != "custom" || cfg.ConsumerName != "worker-7" {
			t.Errorf("identity fields overwritten: %+v", cfg)
		}
		if cfg.BatchSize != 3 || cfg.Concurrency != 2 || cfg.MaxDeliveries != 9 {
			t.Errorf("sizing fields overwritten: %+v", cfg)
		}
	})

	t.Run("negative sizes replaced", func(t *testing.T) {
		cfg := Config{BatchSize: -1, Concurrency: -4}.withDefaults()
		if cfg.BatchSize != 10 || cfg.Concurrency != 5 {
			t.Errorf("got BatchSize=%d Concurrency=%d, want 10 and 5", cfg.BatchSize, cfg.Concurrency)
		}
	})
}
