package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/netscope-observatory/netscope-observatory/internal/config"
)

func TestRunReturnsPromptlyWhenContextAlreadyCanceled(t *testing.T) {
	cfg := config.Default()
	cfg.Interface = "nonexistent-test-iface-0"

	sup := New(cfg, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on canceled context, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}

func TestReopenBackoffSchedule(t *testing.T) {
	if len(reopenBackoff) == 0 {
		t.Fatal("expected a non-empty backoff schedule")
	}
	if reopenBackoff[0] != time.Second {
		t.Errorf("expected first backoff step to be 1s, got %v", reopenBackoff[0])
	}
	last := reopenBackoff[len(reopenBackoff)-1]
	if last != 30*time.Second {
		t.Errorf("expected backoff to cap at 30s, got %v", last)
	}
}
