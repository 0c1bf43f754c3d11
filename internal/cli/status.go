package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/surecall-ai/surecall/internal/core/config"
	"github.com/surecall-ai/surecall/internal/reliability/breaker"
	"github.com/surecall-ai/surecall/internal/reliability/budget"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show circuit state and budget usage for a caller",
	Run:   runStatus,
}

var (
	statusCaller string
	statusTenant string
)

func init() {
	statusCmd.Flags().StringVar(&statusCaller, "caller", "anonymous", "caller identity")
	statusCmd.Flags().StringVar(&statusTenant, "tenant", "", "tenant scope")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	resolver, err := loadResolver(ctx, cfg)
	if err != nil {
		slog.Error("Failed to load tenant policies", "error", err)
		os.Exit(1)
	}
	pol := resolver.Resolve(statusTenant)

	brk := breaker.New(store)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "MODEL\tSTATE\tFAILURES\tOPENED")

	for _, m := range cfg.Models {
		key := breaker.Key{Caller: statusCaller, Model: m.ID, Tenant: statusTenant}
		snap, err := brk.Snapshot(ctx, pol.Breaker, key)
		if err != nil {
			continue
		}
		opened := "-"
		if !snap.OpenedAt.IsZero() {
			opened = snap.OpenedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", m.ID, snap.State, snap.Failures, opened)
	}
	_ = w.Flush()

	gate := budget.New(store)
	u, err := gate.Usage(ctx, statusCaller, statusTenant)
	if err != nil {
		slog.Error("Failed to read budget usage", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nBudget usage for %s (day %s):\n", statusCaller, u.Day)
	fmt.Printf("  global:  $%.4f today, $%.4f this month\n", u.GlobalDailyUSD, u.GlobalMonthlyUSD)
	fmt.Printf("  caller:  $%.4f today, $%.4f this month\n", u.CallerDailyUSD, u.CallerMonthlyUSD)
	fmt.Printf("  tokens:  %d today, %d this month\n", u.GlobalDailyTokens, u.GlobalMonthlyTokens)
}
