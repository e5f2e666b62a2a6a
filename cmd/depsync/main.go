// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Command depsync reconciles the blocked/ready status labels of
// interdependent work items in a forge repository.
//
// Modes:
//
//	depsync --config depsync.yaml                   one full reconciliation
//	depsync --config depsync.yaml --watch           full reconciliation every interval
//	depsync --config depsync.yaml --closed 42,57    incremental pass for newly closed items
//	depsync --config depsync.yaml --replay run-...  retry a run's failed subset
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/forgeflow/depsync/lib/artifact"
	"github.com/forgeflow/depsync/lib/clock"
	"github.com/forgeflow/depsync/lib/config"
	"github.com/forgeflow/depsync/lib/process"
	"github.com/forgeflow/depsync/lib/reconcile"
	"github.com/forgeflow/depsync/lib/record"
	"github.com/forgeflow/depsync/lib/tracker"
	"github.com/forgeflow/depsync/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		watch       bool
		closedIDs   []int64
		replayID    string
		verbose     bool
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to depsync.yaml (overrides DEPSYNC_CONFIG)")
	pflag.BoolVar(&watch, "watch", false, "run a full reconciliation every configured interval")
	pflag.Int64SliceVar(&closedIDs, "closed", nil, "newly closed item IDs for an incremental pass")
	pflag.StringVar(&replayID, "replay", "", "replay the failed subset of the given run")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		version.Print("depsync")
		return nil
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	reconciler, clk, err := buildReconciler(cfg, logger)
	if err != nil {
		return err
	}

	switch {
	case replayID != "":
		result, err := reconciler.ReplayFailed(ctx, replayID)
		if err != nil {
			return err
		}
		return report(result)

	case len(closedIDs) > 0:
		ids := make([]record.ItemID, len(closedIDs))
		for i, id := range closedIDs {
			ids[i] = record.ItemID(id)
		}
		result, err := reconciler.ReconcileIncremental(ctx, ids)
		if err != nil {
			return err
		}
		return report(result)

	case watch:
		return watchLoop(ctx, reconciler, clk, cfg, logger)

	default:
		result, err := reconciler.ReconcileFull(ctx)
		if err != nil {
			return err
		}
		return report(result)
	}
}

// buildReconciler wires the tracker client, artifact store, and
// scheduler from configuration.
func buildReconciler(cfg *config.Config, logger *slog.Logger) (*reconcile.Reconciler, clock.Clock, error) {
	clk := clock.Real()

	token, err := cfg.Token()
	if err != nil {
		return nil, nil, err
	}

	client, err := tracker.NewClient(tracker.Config{
		BaseURL:    cfg.Tracker.BaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout()},
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	store, err := artifact.NewStore(cfg.Artifacts.Dir, clk, logger)
	if err != nil {
		return nil, nil, err
	}

	reconciler := reconcile.New(
		reconcile.NewRepoTracker(client, cfg.Repo.Owner, cfg.Repo.Name, cfg.Tracker.PerPage),
		reconcile.NewArchive(store),
		clk,
		logger,
		reconcile.Options{
			SnapshotThreshold:    cfg.Reconcile.SnapshotThreshold,
			CheckpointThreshold:  cfg.Reconcile.CheckpointThreshold,
			IncrementalBatchSize: cfg.Reconcile.IncrementalBatchSize,
		},
	)
	return reconciler, clk, nil
}

// watchLoop runs a full reconciliation immediately and then on every
// interval tick until the context is cancelled. A failed pass is
// logged and the loop keeps going; the next tick retries.
func watchLoop(ctx context.Context, reconciler *reconcile.Reconciler, clk clock.Clock, cfg *config.Config, logger *slog.Logger) error {
	ticker := clk.NewTicker(cfg.Interval())
	defer ticker.Stop()

	for {
		result, err := reconciler.ReconcileFull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("reconciliation pass failed", "error", err)
		} else {
			logger.Info("pass complete",
				"run", result.RunID,
				"updated", result.ItemsUpdated,
				"skipped", result.ItemsSkipped,
				"errors", len(result.Errors),
			)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		}
	}
}

// report prints the run summary for one-shot modes.
func report(result *reconcile.Result) error {
	fmt.Printf("run %s: %d updated, %d skipped, %d resolved\n",
		result.RunID, result.ItemsUpdated, result.ItemsSkipped, result.DependenciesResolved)
	if result.SnapshotRef != "" {
		fmt.Printf("snapshot: %s\n", result.SnapshotRef)
	}
	if result.ReplayRef != "" {
		fmt.Printf("replay bundle: %s (rerun with --replay %s)\n", result.ReplayRef, result.ReplayRef)
	}
	for _, message := range result.Errors {
		fmt.Printf("error: %s\n", message)
	}
	return nil
}
