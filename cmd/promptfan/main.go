// Command promptfan fans a prompt out to the engines listed in a YAML config
// and prints per-engine progress followed by a final cost table.
//
// Usage:
//
//	promptfan -config config.yaml "Explain the CAP theorem in one paragraph"
//
// Credentials are read from the environment; a .env file next to the binary
// is loaded automatically. Engines without a credential are routed through
// the configured proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/leofalp/promptfan"
	"github.com/leofalp/promptfan/config"
	"github.com/leofalp/promptfan/core/pricing"
	"github.com/leofalp/promptfan/core/recovery"
	"github.com/leofalp/promptfan/core/run"
	"github.com/leofalp/promptfan/providers/observability"
	"github.com/leofalp/promptfan/providers/observability/slogobs"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	verbose := flag.Bool("v", false, "log engine lifecycle events")
	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(prompt) == "" {
		fmt.Fprintln(os.Stderr, "usage: promptfan [-config config.yaml] <prompt>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	engines := cfg.BuildEngines()
	if len(engines) == 0 {
		slog.Error("no engines configured")
		os.Exit(1)
	}

	ctx := context.Background()
	if *verbose {
		observer := slogobs.New(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		ctx = observability.ContextWithObserver(ctx, observer)
	}

	resolver := &pricing.Resolver{Admin: cfg.PricingTable()}

	var printMu sync.Mutex
	orchestrator := run.NewOrchestrator(promptfan.NewDefaultRegistry(cfg.ProxyBase), run.Options{
		ProviderMax:    cfg.ProviderMaxOutput,
		Pricing:        resolver,
		IdleTimeout:    cfg.IdleTimeout.Std(),
		UpdateInterval: cfg.UpdateInterval.Std(),
		OnUpdate: func(snapshot run.StateSnapshot) {
			printMu.Lock()
			defer printMu.Unlock()
			switch {
			case snapshot.Status != "":
				fmt.Printf("[%s] %s\n", snapshot.EngineID, snapshot.Status)
			default:
				fmt.Printf("[%s] %s %d chars\n", snapshot.EngineID, snapshot.State, len(snapshot.Content))
			}
		},
	})

	results := orchestrator.Run(ctx, prompt, engines, nil)

	fmt.Println()
	for _, result := range results {
		fmt.Printf("=== %s (%s) ===\n", result.EngineID, result.Version)
		switch {
		case result.Success:
			fmt.Println(result.FinalContent)
		case result.Truncated:
			fmt.Printf("%s\n[truncated at %d output tokens]\n", result.FinalContent, result.PlannedOutputCap)
		default:
			explanation := recovery.Explain(result.Err)
			fmt.Printf("failed: %s\n  why: %s\n  action: %s\n", explanation.What, explanation.Why, explanation.Action)
		}
		fmt.Println()
	}

	fmt.Println("engine            tokens in/out   attempts   duration     cost")
	for _, result := range results {
		status := "ok"
		switch {
		case result.Truncated:
			status = "truncated"
		case !result.Success:
			status = "failed"
		}
		fmt.Printf("%-16s  %6d/%-6d   %8d   %8s   $%.4f  %s\n",
			result.EngineID, result.TokensIn, result.TokensOut,
			result.Attempts, result.Duration.Round(time.Millisecond), result.ActualCost, status)
	}

	if lastErr := orchestrator.LastError(); lastErr != nil {
		fmt.Fprintf(os.Stderr, "\nlast error on %s: %v\n", lastErr.EngineID, lastErr.Err)
		os.Exit(1)
	}
}
