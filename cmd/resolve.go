package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"routecard/internal/log"
	"routecard/internal/watcher"
)

var resolveAt string

var resolveCmd = &cobra.Command{
	Use:   "resolve <part> <site>",
	Short: "Resolve the production routing for a part at a site",
	Long: `Resolve which routing governs manufacturing of a part at a site.

Answers with the unique production routing whose effective window contains
the queried instant. Use --at to query a different instant (RFC 3339).

Examples:
  routecard resolve widget-a dallas
  routecard resolve widget-a dallas --at 2026-09-01T00:00:00Z`,
	Args: cobra.ExactArgs(2),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		at, err := parseAt(resolveAt)
		if err != nil {
			return err
		}
		routing, err := e.svc.ResolveProductionRouting(ctx, args[0], args[1], at)
		if err != nil {
			return err
		}
		return printJSON(toRoutingDTO(routing, true))
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the database and keep the resolve cache fresh",
	Long: `Watch the routing database file and flush the resolve cache whenever
another process writes to it. Runs until interrupted.`,
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		if !cfg.AutoRefresh {
			return fmt.Errorf("auto_refresh is disabled in the configuration")
		}

		w, err := watcher.New(watcher.DefaultConfig(cfg.DBPath))
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		changes, err := w.Start()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		fmt.Fprintf(os.Stderr, "watching %s\n", cfg.DBPath)
		for {
			select {
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				e.svc.FlushResolveCache(ctx)
				log.Info(log.CatWatcher, "database changed, resolve cache flushed", "db_path", cfg.DBPath)
			case <-stop:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	}),
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAt, "at", "", "instant to resolve for (RFC 3339, default now)")
	rootCmd.AddCommand(resolveCmd, watchCmd)
}
