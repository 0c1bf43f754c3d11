// Package control assembles the gateway from configuration: counter store,
// tenant policy sources, model endpoints, executor and HTTP server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/surecall-ai/surecall/internal/core/config"
	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/gateway"
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/infra/llm/openai"
	"github.com/surecall-ai/surecall/internal/infra/llm/sim"
	"github.com/surecall-ai/surecall/internal/infra/policystore"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/executor"
	"github.com/surecall-ai/surecall/internal/reliability/metrics"
)

// App is the main application struct that manages the gateway lifecycle.
type App struct {
	cfg      config.AppConfig
	store    counter.Store
	db       *policystore.Store
	gate     *budget.Gate
	resolver *policy.Resolver
	server   *gateway.Server
	clients  []*openai.Client
	log      *slog.Logger
}

// New creates a new App instance with all dependencies initialized.
func New(cfg config.AppConfig) (*App, error) {

	// 1. Initialize the counter store backing breaker and budget state.
	var store counter.Store
	if cfg.Redis.URL != "" {
		rs, err := counter.NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		store = rs
		slog.Info("Using Redis counter store")
	} else {
		store = counter.NewMemoryStore()
		slog.Info("Using in-memory counter store, breaker and budget state is per-process")
	}

	// 2. Assemble tenant overrides. Database rows win over YAML blocks for
	// the same tenant.
	tenants := make(map[string]policy.Overrides, len(cfg.Tenants))
	for id, ov := range cfg.Tenants {
		tenants[id] = ov
	}

	var db *policystore.Store
	if cfg.Database.URL != "" {
		var err error
		db, err = policystore.New(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init policy store: %w", err)
		}
		if err := db.Migrate("migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate policy store: %w", err)
		}

		stored, err := db.LoadAll(context.Background())
		if err != nil {
			slog.Warn("Failed to load tenant policies", "error", err)
		}
		for id, ov := range stored {
			tenants[id] = ov
		}
		slog.Info("Using PostgreSQL tenant policies", "tenants", len(stored))
	}

	resolver := policy.NewResolver(cfg.Defaults, tenants)

	// 3. Initialize model endpoints.
	upstreams := make(map[string]gateway.Upstream, len(cfg.Models))
	var clients []*openai.Client
	for _, m := range cfg.Models {
		switch m.Provider {
		case "sim":
			model := sim.New(sim.Config{})
			upstreams[m.ID] = gateway.UpstreamFunc(func(ctx context.Context, modelID string, _ map[string]any) (*domain.Response, error) {
				return model.Invoke(ctx, modelID)
			})
			slog.Info("Registered simulated model", "model", m.ID)
		default:
			client := openai.NewClient(openai.Config{
				BaseURL:     m.BaseURL,
				APIKey:      m.APIKey,
				Timeout:     m.Timeout,
				InputPer1K:  m.InputPer1K,
				OutputPer1K: m.OutputPer1K,
			})
			clients = append(clients, client)
			upstreams[m.ID] = client
			slog.Info("Registered model endpoint", "model", m.ID, "base_url", m.BaseURL)
		}
	}

	// 4. Initialize the executor.
	gate := budget.New(store)
	exec := executor.New(executor.Config{
		Breaker: breaker.New(store),
		Budget:  gate,
		Events:  metrics.Observer{},
	})

	// 5. Initialize the gateway server.
	server := gateway.NewServer(gateway.Config{
		Port:      cfg.Server.Port,
		Executor:  exec,
		Resolver:  resolver,
		Gate:      gate,
		Upstreams: upstreams,
		Ready: func(ctx context.Context) error {
			// A read of a missing key exercises the store round trip.
			if _, err := store.GetInt(ctx, "healthz"); err != nil {
				return fmt.Errorf("counter store: %w", err)
			}
			if db != nil {
				if err := db.Health(ctx); err != nil {
					return fmt.Errorf("policy store: %w", err)
				}
			}
			return nil
		},
	})

	return &App{
		cfg:      cfg,
		store:    store,
		db:       db,
		gate:     gate,
		resolver: resolver,
		server:   server,
		clients:  clients,
		log:      slog.Default(),
	}, nil
}

// Start starts the gateway server.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Gateway server failed", "error", err)
		}
	}()
	a.log.Info("Gateway listening", "port", a.cfg.Server.Port, "models", len(a.cfg.Models))
	return nil
}

// Stop stops the gateway and releases its connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping gateway...")

	for _, c := range a.clients {
		c.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close policy store", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close counter store", "error", err)
	}

	return a.server.Stop(ctx)
}
