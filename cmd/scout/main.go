// Command scout runs the market data collector and maintains its watchlist.
//
// Usage:
//
//	scout [run]        collect until SIGINT/SIGTERM
//	scout once         run a single collection cycle
//	scout status       print the last persisted collector status
//	scout list         print the watchlist
//	scout add TICKER   start tracking a ticker
//	scout remove TICKER
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MarketScout/internal/config"
	"MarketScout/internal/logger"
	"MarketScout/internal/scheduler"
	"MarketScout/internal/store"
)

func main() {
	cmd, args := "run", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}
	if err := execute(cmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "scout %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func execute(cmd string, args []string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	collects := cmd == "run" || cmd == "once"
	if collects {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
	}

	log, err := logger.New(logger.Config{
		Level:          cfg.Log.Level,
		Format:         cfg.Log.Format,
		TracingEnabled: cfg.Log.TracingEnabled,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if collects && cfg.Log.TracingEnabled {
		shutdown, err := logger.InitTracer(ctx)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "run", "once":
		if err := a.withScheduler(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		log.Info("MarketScout starting", zap.String("command", cmd),
			zap.String("storage", cfg.Storage.Backend), zap.Duration("interval", cfg.UpdateInterval()))
		if cmd == "once" {
			return a.once(ctx)
		}
		return a.run(ctx)

	case "status":
		st, err := scheduler.ReadStatus(a.stores.status)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no status recorded yet")
		}
		if err != nil {
			return err
		}
		return printJSON(st)

	case "list":
		return printJSON(a.registry.Status())

	case "add", "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: scout %s TICKER", cmd)
		}
		var ok bool
		if cmd == "add" {
			ok = a.registry.Add(args[0])
		} else {
			ok = a.registry.Remove(args[0])
		}
		if !ok {
			return fmt.Errorf("%s %q rejected", cmd, args[0])
		}
		return printJSON(a.registry.List())
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
