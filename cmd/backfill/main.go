// Command backfill recomputes the leaderboard from the configured store and
// overwrites the persisted document.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"example.com/performance/internal/config"
	"example.com/performance/internal/domain"
	"example.com/performance/internal/leaderboard"
	"example.com/performance/internal/logging"
	"example.com/performance/internal/persistence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "backfill: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("backfill", flag.ContinueOnError)
	flags.SetOutput(stderr)
	credentials := flags.String("credentials", "", "env file with store credentials")
	driver := flags.String("driver", "", "store driver override (postgres, sqlite, memory)")
	dryRun := flags.Bool("dry-run", false, "print the computed leaderboard instead of persisting it")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFile(*credentials)
	if err != nil {
		return err
	}
	if *driver != "" {
		cfg.StoreDriver = strings.ToLower(*driver)
	}

	logger := logging.NewWithWriter(stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(ctx, cfg.RefreshTimeout)
	defer cancel()

	store, err := persistence.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer store.Close()

	if *dryRun {
		snapshot, err := store.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("read leaderboard inputs: %w", err)
		}
		board, stats := leaderboard.ComputeWithStats(snapshot.Results, domain.Athletes(snapshot.Users), snapshot.Config, time.Now())
		logger.Info("dry run computed leaderboard", slog.Int("activities", stats.Activities), slog.Int("entries", stats.EntriesKept))

		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(board)
	}

	result, err := domain.NewRefresher(store, domain.WithRefreshLogger(logger)).Refresh(ctx)
	if err != nil {
		return err
	}
	logger.Info("backfill complete",
		slog.Time("updated_at", result.UpdatedAt),
		slog.Int("entries", result.Stats.EntriesKept),
	)
	return nil
}
