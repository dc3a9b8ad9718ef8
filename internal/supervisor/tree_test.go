package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubService struct {
	started chan struct{}
}

func (s stubService) Serve(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestNewTreeAppliesDefaultsForZeroConfig(t *testing.T) {
	logger := zerolog.Nop()
	tree := NewTree(&logger, TreeConfig{})

	if tree.root == nil || tree.core == nil || tree.transport == nil {
		t.Fatal("expected root, core, and transport supervisors to be constructed")
	}
}

func TestTreeServesAddedServicesUntilCancelled(t *testing.T) {
	logger := zerolog.Nop()
	tree := NewTree(&logger, DefaultTreeConfig())

	core := stubService{started: make(chan struct{})}
	transport := stubService{started: make(chan struct{})}
	tree.AddCoreService(core)
	tree.AddTransportService(transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tree.Serve(ctx) }()

	select {
	case <-core.started:
	case <-time.After(2 * time.Second):
		t.Fatal("core service never started")
	}
	select {
	case <-transport.started:
	case <-time.After(2 * time.Second):
		t.Fatal("transport service never started")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after context cancellation")
	}
}
