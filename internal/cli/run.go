package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/surecall-ai/surecall/internal/core/config"
	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/infra/llm/openai"
	"github.com/surecall-ai/surecall/internal/infra/llm/sim"
	"github.com/surecall-ai/surecall/internal/infra/policystore"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
	"github.com/surecall-ai/surecall/internal/reliability/executor"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Send one prompt through the reliability layer and print the attempt ledger",
	Args:  cobra.ExactArgs(1),
	Run:   runOnce,
}

var (
	runModel  string
	runCaller string
	runTenant string
)

func init() {
	runCmd.Flags().StringVar(&runModel, "model", "", "primary model (default is the first configured model)")
	runCmd.Flags().StringVar(&runCaller, "caller", "cli", "caller identity")
	runCmd.Flags().StringVar(&runTenant, "tenant", "", "tenant scope")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Models) == 0 {
		slog.Error("No models configured")
		os.Exit(1)
	}
	model := runModel
	if model == "" {
		model = cfg.Models[0].ID
	}

	ctx := context.Background()

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to open counter store", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	resolver, err := loadResolver(ctx, cfg)
	if err != nil {
		slog.Error("Failed to load tenant policies", "error", err)
		os.Exit(1)
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": args[0]},
		},
	}

	// One invoker per configured model, routed by candidate ID.
	invokers := make(map[string]executor.Invoker, len(cfg.Models))
	for _, m := range cfg.Models {
		switch m.Provider {
		case "sim":
			invokers[m.ID] = sim.New(sim.Config{})
		default:
			client := openai.NewClient(openai.Config{
				BaseURL:     m.BaseURL,
				APIKey:      m.APIKey,
				Timeout:     m.Timeout,
				InputPer1K:  m.InputPer1K,
				OutputPer1K: m.OutputPer1K,
			})
			defer client.Close()
			invokers[m.ID] = executor.InvokerFunc(func(ctx context.Context, modelID string) (*domain.Response, error) {
				return client.Complete(ctx, modelID, payload)
			})
		}
	}

	exec := executor.New(executor.Config{
		Breaker: breaker.New(store),
		Budget:  budget.New(store),
	})

	res, led, err := exec.Execute(ctx, executor.Request{
		Invoker: executor.InvokerFunc(func(ctx context.Context, modelID string) (*domain.Response, error) {
			inv, ok := invokers[modelID]
			if !ok {
				return nil, fmt.Errorf("no endpoint configured for model %q", modelID)
			}
			return inv.Invoke(ctx, modelID)
		}),
		Model:  model,
		Caller: runCaller,
		Tenant: runTenant,
		Policy: resolver.Resolve(runTenant),
	})

	ledgerJSON, _ := json.MarshalIndent(led, "", "  ")

	if err != nil {
		fmt.Printf("Execution failed: %v\n\nAttempts:\n%s\n", err, ledgerJSON)
		os.Exit(1)
	}

	fmt.Printf("Model:   %s\n", res.Model)
	fmt.Printf("Cost:    $%.6f\n", res.Response.CostUSD)
	fmt.Printf("Tokens:  %d in / %d out\n", res.Response.Usage.InputTokens, res.Response.Usage.OutputTokens)
	fmt.Printf("\n%s\n", res.Response.Content)
	fmt.Printf("\nAttempts:\n%s\n", ledgerJSON)
}

// loadResolver layers database tenant rows over the YAML tenant blocks, the
// same precedence the service uses.
func loadResolver(ctx context.Context, cfg *config.AppConfig) (*policy.Resolver, error) {
	tenants := make(map[string]policy.Overrides, len(cfg.Tenants))
	for id, ov := range cfg.Tenants {
		tenants[id] = ov
	}
	if cfg.Database.URL != "" {
		db, err := policystore.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = db.Close()
		}()
		stored, err := db.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for id, ov := range stored {
			tenants[id] = ov
		}
	}
	return policy.NewResolver(cfg.Defaults, tenants), nil
}

// openStore connects the counter store the way the service does: Redis when
// configured, otherwise a fresh in-process store.
func openStore(cfg *config.AppConfig) (counter.Store, error) {
	if cfg.Redis.URL != "" {
		return counter.NewRedisStore(cfg.Redis)
	}
	slog.Warn("No Redis configured, using a fresh in-process store")
	return counter.NewMemoryStore(), nil
}
