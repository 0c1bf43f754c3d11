package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/surecall-ai/surecall/internal/core/config"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
)

var resetCmd = &cobra.Command{
	Use:   "reset [caller]",
	Short: "Clear circuit state for a caller across all configured models",
	Args:  cobra.ExactArgs(1),
	Run:   runReset,
}

var (
	resetTenant  string
	resetBudgets bool
)

func init() {
	resetCmd.Flags().StringVar(&resetTenant, "tenant", "", "tenant scope")
	resetCmd.Flags().BoolVar(&resetBudgets, "budgets", false, "also clear the caller's live budget counters")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	caller := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
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

	var keys []string
	for _, m := range cfg.Models {
		key := breaker.Key{Caller: caller, Model: m.ID, Tenant: resetTenant}
		keys = append(keys, breaker.StorageKeys(key)...)
	}
	if resetBudgets {
		gate := budget.New(store)
		keys = append(keys, gate.StorageKeys(caller, resetTenant)...)
	}

	if err := store.Delete(ctx, keys...); err != nil {
		slog.Error("Failed to clear counters", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully cleared %d counters for caller %s\n", len(keys), caller)
}
