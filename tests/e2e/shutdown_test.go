package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/surecall-ai/surecall/internal/control"
	"github.com/surecall-ai/surecall/internal/core/config"
)

func TestGracefulShutdown(t *testing.T) {
	// Minimal config: in-memory counters, one simulated model, random port.
	cfg := config.AppConfig{
		Models: []config.ModelConfig{
			{ID: "sim-mini", Provider: "sim"},
		},
	}

	app, err := control.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Failed to start app: %v", err)
	}

	// Let the listener come up before tearing it down
	time.Sleep(200 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
