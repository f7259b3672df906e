package queue

import (
	"context"
	"errors"
	"testing"
)

func TestOpen_UnsupportedType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = "kafka"

	_, err := Open(context.Background(), cfg, testLogger())
	if !errors.Is(err, ErrUnsupportedQueueType) {
		t.Fatalf("err = %v, want ErrUnsupportedQueueType", err)
	}
}

func TestOpen_SQSRequiresQueueURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Type = "sqs"

	if _, err := Open(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error without sqs_queue_url")
	}
}

func TestOpen_Redis(t *testing.T) {
	// go-redis connects lazily, so no server is needed to build the backend.
	cfg := DefaultConfig()
	cfg.ConsumerName = "test"

	b, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if b.Type != "redis" {
		t.Errorf("Type = %q, want redis", b.Type)
	}
	if _, ok := b.Enqueuer.(*RedisEnqueuer); !ok {
		t.Errorf("Enqueuer = %T, want *RedisEnqueuer", b.Enqueuer)
	}
	if _, ok := b.DLQ.(*RedisDLQ); !ok {
		t.Errorf("DLQ = %T, want *RedisDLQ", b.DLQ)
	}
	if _, ok := b.Dequeuer(&countingHandler{}).(*RedisDequeuer); !ok {
		t.Error("Dequeuer is not a *RedisDequeuer")
	}
}
