package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/surecall-ai/surecall/internal/core/domain"
	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/infra/llm/sim"
	"github.com/surecall-ai/surecall/internal/reliability"
)

func main() {
	ctx := context.Background()

	// 1. Simulated backends: a flaky primary, a steady fallback, a dead model
	flaky := sim.New(sim.Config{
		FailFirst:    2,
		ErrorMessage: "503 service unavailable (simulated)",
		Latency:      50 * time.Millisecond,
		CostUSD:      0.012,
	})
	steady := sim.New(sim.Config{
		Latency: 20 * time.Millisecond,
		CostUSD: 0.002,
	})
	dead := sim.New(sim.Config{
		FailFirst:    1 << 30,
		ErrorMessage: "503 service unavailable (simulated)",
	})

	invoker := reliability.InvokerFunc(func(ctx context.Context, modelID string) (*domain.Response, error) {
		switch modelID {
		case "prime-xl":
			return flaky.Invoke(ctx, modelID)
		case "prime-mini":
			return steady.Invoke(ctx, modelID)
		default:
			return dead.Invoke(ctx, modelID)
		}
	})

	// 2. Shared counter store with breaker and budget on top
	store := counter.NewMemoryStore()
	defer store.Close()

	gate := reliability.NewGate(store)
	exec := reliability.NewExecutor(reliability.Config{
		Breaker: reliability.NewBreaker(store),
		Budget:  gate,
	})

	hard := 0.03
	pol := policy.Policy{
		Fallbacks: []string{"prime-mini"},
		Retry: policy.RetryPolicy{
			MaxRetries: 3,
			Strategy:   "exponential",
			Base:       100 * time.Millisecond,
			MaxDelay:   2 * time.Second,
		},
		Breaker:      &policy.BreakerPolicy{Threshold: 3, Within: time.Minute, Cooldown: 5 * time.Second},
		Budget:       &policy.BudgetPolicy{Enforcement: policy.EnforcementHard, CallerDailyUSD: &hard},
		TotalTimeout: 30 * time.Second,
	}

	fmt.Println("=== Retries until the primary recovers ===")
	res, led, err := exec.Execute(ctx, reliability.Request{
		Invoker: invoker,
		Model:   "prime-xl",
		Caller:  "demo",
		Policy:  pol,
	})
	if err != nil {
		log.Fatalf("execution failed: %v", err)
	}
	fmt.Printf("Winner: %s after %d attempts\n", res.Model, len(led.Attempts))
	ledgerJSON, _ := json.MarshalIndent(led, "", "  ")
	fmt.Printf("Ledger:\n%s\n\n", ledgerJSON)

	fmt.Println("=== Circuit opens on a dead model, fallback takes over ===")
	deadPol := pol
	deadPol.Retry.MaxRetries = 0
	for i := 1; i <= 5; i++ {
		res, led, err := exec.Execute(ctx, reliability.Request{
			Invoker: invoker,
			Model:   "prime-dead",
			Caller:  "demo",
			Policy:  deadPol,
		})
		if err != nil {
			log.Fatalf("execution failed: %v", err)
		}
		fmt.Printf("Call %d: served by %s (attempts %d, short-circuits %d)\n",
			i, res.Model, len(led.Attempts), led.ShortCircuitCount())
	}
	fmt.Println()

	fmt.Println("=== Hard budget eventually blocks the caller ===")
	for i := 1; ; i++ {
		res, _, err := exec.Execute(ctx, reliability.Request{
			Invoker: invoker,
			Model:   "prime-mini",
			Caller:  "demo",
			Policy:  pol,
		})
		if errors.Is(err, reliability.ErrBudgetExceeded) {
			fmt.Printf("Call %d: blocked: %v\n", i, err)
			break
		}
		if err != nil {
			log.Fatalf("execution failed: %v", err)
		}
		fmt.Printf("Call %d: served by %s for $%.4f\n", i, res.Model, res.Response.CostUSD)
	}
	fmt.Println()

	// 3. Final budget counters
	fmt.Println("=== Usage ===")
	u, err := gate.Usage(ctx, "demo", "")
	if err != nil {
		log.Fatalf("usage read failed: %v", err)
	}
	fmt.Printf("Spend today:  $%.4f (ceiling $%.2f)\n", u.CallerDailyUSD, hard)
	fmt.Printf("Tokens today: %d\n", u.GlobalDailyTokens)
}
