package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cobrify/dunning-engine/internal/queue"
)

func TestWorkerStartConsumesRunQueue(t *testing.T) {
	t.Parallel()

	deps := defaultRunDeps()
	runs := newRunService(t, deps)

	var consumers atomic.Int32
	consumer := &fakeRunConsumer{
		consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
			if queueName != queue.RunQueueName {
				t.Errorf("queue = %q, want %q", queueName, queue.RunQueueName)
			}
			consumers.Add(1)
			<-ctx.Done()
			return nil
		},
	}

	svc, err := NewWorkerService(consumer, runs, 3, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	deadline := time.After(2 * time.Second)
	for consumers.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("consumers started = %d, want 3", consumers.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestWorkerProcessMessageRunsTenantPass(t *testing.T) {
	t.Parallel()

	deps := defaultRunDeps()
	runs := newRunService(t, deps)

	svc, err := NewWorkerService(&fakeRunConsumer{}, runs, 1, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	msg := queue.TenantRunMessage{TenantID: "tenant-1", RunID: "run-1", TriggeredAt: runAt}
	if err := svc.processMessage(context.Background(), msg); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}
}

func TestWorkerRequiresRunService(t *testing.T) {
	t.Parallel()

	if _, err := NewWorkerService(&fakeRunConsumer{}, nil, 1, 0, nil); err == nil {
		t.Fatal("expected error for missing run service")
	}
}
