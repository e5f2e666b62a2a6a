// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/forgeflow/depsync/lib/clock"
	"github.com/forgeflow/depsync/lib/codec"
	"github.com/forgeflow/depsync/lib/depgraph"
	"github.com/forgeflow/depsync/lib/record"
)

// Corpus size thresholds for run artifacts.
const (
	// DefaultSnapshotThreshold: a full run over a corpus at least
	// this large uploads a pre-pass snapshot before the first write.
	DefaultSnapshotThreshold = 500

	// DefaultCheckpointThreshold: a full run over a corpus at least
	// this large emits a checkpoint after every batch.
	DefaultCheckpointThreshold = 100
)

// Options tunes a Reconciler. Zero values select the defaults.
type Options struct {
	SnapshotThreshold   int
	CheckpointThreshold int

	// IncrementalBatchSize is the fixed batch size for incremental
	// and replay runs. Defaults to InitialBatchSize.
	IncrementalBatchSize int

	// CheckpointFunc overrides checkpoint delivery. The default
	// saves through the artifact store.
	CheckpointFunc func(ctx context.Context, runID string, checkpoint Checkpoint, meta map[string]string) error
}

// Reconciler drives reconciliation runs against a tracker and an
// artifact store. Construct with New; safe to reuse across runs, but
// a single Reconciler runs one pass at a time.
type Reconciler struct {
	tracker TrackerClient
	store   ArtifactStore
	clock   clock.Clock
	logger  *slog.Logger
	options Options
}

// New creates a Reconciler. Clock and logger fall back to the real
// clock and slog.Default.
func New(trackerClient TrackerClient, store ArtifactStore, clk clock.Clock, logger *slog.Logger, options Options) *Reconciler {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.SnapshotThreshold == 0 {
		options.SnapshotThreshold = DefaultSnapshotThreshold
	}
	if options.CheckpointThreshold == 0 {
		options.CheckpointThreshold = DefaultCheckpointThreshold
	}
	if options.IncrementalBatchSize == 0 {
		options.IncrementalBatchSize = InitialBatchSize
	}
	reconciler := &Reconciler{
		tracker: trackerClient,
		store:   store,
		clock:   clk,
		logger:  logger,
		options: options,
	}
	if reconciler.options.CheckpointFunc == nil {
		reconciler.options.CheckpointFunc = store.SaveCheckpoint
	}
	return reconciler
}

// plannedUpdate is one label write the scheduler intends to issue.
type plannedUpdate struct {
	id     record.ItemID
	labels []string
}

// batchOutcome is one item's result within a dispatched batch.
type batchOutcome struct {
	update plannedUpdate
	err    error
}

// ReconcileFull re-scans the whole corpus: list, parse, build the
// graph, detect cycles, plan the resolution order, then apply status
// labels in adaptively sized batches. Returns an error only when the
// initial listing fails; everything after that degrades into Result
// entries.
func (reconciler *Reconciler) ReconcileFull(ctx context.Context) (*Result, error) {
	runID := reconciler.newRunID()
	defer reconciler.cleanup()

	result := &Result{RunID: runID}

	records, corpus, err := reconciler.scan(ctx, result)
	if err != nil {
		return nil, err
	}

	graph := depgraph.Build(records)

	for _, cycle := range graph.Cycles() {
		reconciler.logger.Warn("dependency cycle detected", "run", runID, "cycle", cycle.Description)
		result.Errors = append(result.Errors, cycle.Description)
	}

	order := graph.PlanOrder()
	result.DependenciesResolved = len(graph.ReadySet())

	if len(records) >= reconciler.options.SnapshotThreshold {
		reconciler.uploadSnapshot(ctx, runID, records, result)
	}

	plans := reconciler.planUpdates(graph, order.Items, corpus, result)

	reconciler.logger.Info("full reconciliation planned",
		"run", runID,
		"items", len(records),
		"resolvable", order.Resolved,
		"updates", len(plans),
		"skipped", result.ItemsSkipped,
	)

	checkpointed := len(records) >= reconciler.options.CheckpointThreshold
	replay, checkpoint := reconciler.applyAdaptive(ctx, runID, plans, checkpointed, result)

	reconciler.finishRun(ctx, runID, replay, checkpoint, result)
	return result, nil
}

// ReconcileIncremental updates only the dependents of the given newly
// closed items, with a fixed batch size. The corpus is still listed
// and parsed (the graph is needed to find dependents), but only
// affected items are evaluated and no snapshot or checkpoint is
// emitted.
func (reconciler *Reconciler) ReconcileIncremental(ctx context.Context, closedIDs []record.ItemID) (*Result, error) {
	runID := reconciler.newRunID()
	defer reconciler.cleanup()

	result := &Result{RunID: runID}

	records, corpus, err := reconciler.scan(ctx, result)
	if err != nil {
		return nil, err
	}

	graph := depgraph.Build(records)

	closedSet := make(map[record.ItemID]struct{}, len(closedIDs))
	for _, id := range closedIDs {
		closedSet[id] = struct{}{}
	}
	result.DependenciesResolved = len(graph.Unblockable(closedSet))

	// Affected items: every open dependent of a newly closed item.
	// Their blocked counts changed even when they did not become
	// ready.
	affectedSet := make(map[record.ItemID]struct{})
	for id := range closedSet {
		for _, dependent := range graph.Dependents(id) {
			if !graph.Closed(dependent) {
				affectedSet[dependent] = struct{}{}
			}
		}
	}
	affected := sortedIDs(affectedSet)

	plans := reconciler.planUpdates(graph, affected, corpus, result)

	reconciler.logger.Info("incremental reconciliation planned",
		"run", runID,
		"closed", len(closedIDs),
		"affected", len(affected),
		"updates", len(plans),
	)

	replay, checkpoint := reconciler.applyFixed(ctx, plans, result)

	reconciler.finishRun(ctx, runID, replay, checkpoint, result)
	return result, nil
}

// ReplayFailed retries exactly the failed operations of an earlier
// run from its stored replay bundle, without rebuilding the graph.
// Still-failing operations are bundled again under the same replay
// ID, replacing the bundle with the shrinking remainder.
func (reconciler *Reconciler) ReplayFailed(ctx context.Context, replayID string) (*Result, error) {
	defer reconciler.cleanup()

	entries, err := reconciler.store.LoadReplayBundle(ctx, replayID)
	if err != nil {
		return nil, fmt.Errorf("loading replay bundle %s: %w", replayID, err)
	}

	result := &Result{RunID: replayID}

	plans := make([]plannedUpdate, 0, len(entries))
	for _, entry := range entries {
		if entry.Operation != opUpdateLabels {
			result.Errors = append(result.Errors, fmt.Sprintf("replay entry with unknown operation %q", entry.Operation))
			continue
		}
		var payload updateLabelsPayload
		if err := codec.Unmarshal(entry.Data, &payload); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("replay entry for %s: undecodable payload: %v", entry.Operation, err))
			continue
		}
		plans = append(plans, plannedUpdate{id: payload.Item, labels: payload.Labels})
	}

	reconciler.logger.Info("replaying failed operations", "replay", replayID, "operations", len(plans))

	replay, checkpoint := reconciler.applyFixed(ctx, plans, result)

	reconciler.finishRun(ctx, replayID, replay, checkpoint, result)
	return result, nil
}

// scan lists the full corpus and parses each item's dependency
// declaration. Returns the parsed records and the corpus items by ID.
// Parse failures exclude the item and are recorded on the result.
func (reconciler *Reconciler) scan(ctx context.Context, result *Result) ([]record.DependencyRecord, map[record.ItemID][]string, error) {
	items, err := reconciler.tracker.ListItems(ctx, ListFilter{State: "all"})
	if err != nil {
		return nil, nil, fmt.Errorf("listing items: %w", err)
	}

	records := make([]record.DependencyRecord, 0, len(items))
	labels := make(map[record.ItemID][]string, len(items))
	for _, item := range items {
		id := record.ItemID(item.Number)
		declaration, err := record.Parse(item.Body)
		if err != nil {
			result.ParseFailures++
			result.Errors = append(result.Errors, fmt.Sprintf("item #%d: %v", id, err))
			reconciler.logger.Warn("skipping unparseable item", "item", id, "error", err)
			continue
		}
		records = append(records, record.DependencyRecord{
			Item:         id,
			Closed:       item.Closed(),
			Labels:       item.LabelNames(),
			Dependencies: declaration.Dependencies,
			Metadata:     declaration.Metadata,
		})
		labels[id] = item.LabelNames()
	}
	return records, labels, nil
}

// planUpdates computes the label write for each candidate item,
// preserving the candidates' order. Closed items, external
// references, and items already carrying their computed labels are
// skipped.
func (reconciler *Reconciler) planUpdates(graph *depgraph.Graph, candidates []record.ItemID, corpus map[record.ItemID][]string, result *Result) []plannedUpdate {
	plans := make([]plannedUpdate, 0, len(candidates))
	for _, id := range candidates {
		current, scanned := corpus[id]
		if !scanned || graph.Closed(id) {
			continue
		}
		desired, changed := DesiredLabels(current, StatusFor(graph, id))
		if !changed {
			result.ItemsSkipped++
			continue
		}
		plans = append(plans, plannedUpdate{id: id, labels: desired})
	}
	return plans
}

// applyAdaptive issues the planned updates in adaptively sized
// batches, emitting checkpoints when enabled. Returns the replay
// entries for failed updates and the final progress record.
func (reconciler *Reconciler) applyAdaptive(ctx context.Context, runID string, plans []plannedUpdate, checkpointed bool, result *Result) ([]ReplayEntry, Checkpoint) {
	start := reconciler.clock.Now()
	checkpoint := Checkpoint{
		TotalItems:       len(plans),
		CurrentBatchSize: InitialBatchSize,
		StartTime:        start,
	}

	var replay []ReplayEntry
	batchSize := InitialBatchSize
	for offset := 0; offset < len(plans); {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run aborted: %v", ctx.Err()))
			break
		}

		end := offset + batchSize
		if end > len(plans) {
			end = len(plans)
		}
		batch := plans[offset:end]
		offset = end

		metrics, failures := reconciler.runBatch(ctx, batch, result)
		result.Metrics = append(result.Metrics, metrics)
		replay = append(replay, failures...)

		checkpoint.ProcessedItems += metrics.BatchSize
		checkpoint.CompletedItems += metrics.Successful
		checkpoint.FailedItems += metrics.Failed
		checkpoint.CurrentBatchSize = batchSize
		checkpoint.LastUpdateTime = reconciler.clock.Now()
		checkpoint.EstimatedCompletionTime = estimateCompletion(start, checkpoint.LastUpdateTime, checkpoint.ProcessedItems, checkpoint.TotalItems)

		if checkpointed {
			if err := reconciler.options.CheckpointFunc(ctx, runID, checkpoint, nil); err != nil {
				reconciler.logger.Warn("checkpoint save failed", "run", runID, "error", err)
			}
		}

		batchSize = NextBatchSize(metrics, batchSize)
	}
	return replay, checkpoint
}

// applyFixed issues the planned updates in fixed-size batches (used
// by incremental and replay runs). No checkpoints are emitted, but
// the progress record is still kept for the replay bundle.
func (reconciler *Reconciler) applyFixed(ctx context.Context, plans []plannedUpdate, result *Result) ([]ReplayEntry, Checkpoint) {
	size := reconciler.options.IncrementalBatchSize
	checkpoint := Checkpoint{
		TotalItems:       len(plans),
		CurrentBatchSize: size,
		StartTime:        reconciler.clock.Now(),
	}

	var replay []ReplayEntry
	for offset := 0; offset < len(plans); {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run aborted: %v", ctx.Err()))
			break
		}

		end := offset + size
		if end > len(plans) {
			end = len(plans)
		}
		metrics, failures := reconciler.runBatch(ctx, plans[offset:end], result)
		result.Metrics = append(result.Metrics, metrics)
		replay = append(replay, failures...)
		offset = end

		checkpoint.ProcessedItems += metrics.BatchSize
		checkpoint.CompletedItems += metrics.Successful
		checkpoint.FailedItems += metrics.Failed
		checkpoint.LastUpdateTime = reconciler.clock.Now()
	}
	return replay, checkpoint
}

// runBatch dispatches one batch concurrently, one goroutine per item,
// and waits for every outcome. A failed item never blocks or fails
// its batch mates.
func (reconciler *Reconciler) runBatch(ctx context.Context, batch []plannedUpdate, result *Result) (BatchMetrics, []ReplayEntry) {
	start := reconciler.clock.Now()
	outcomes := make(chan batchOutcome, len(batch))

	var group sync.WaitGroup
	for _, update := range batch {
		group.Add(1)
		go func(update plannedUpdate) {
			defer group.Done()
			outcomes <- batchOutcome{
				update: update,
				err:    reconciler.tracker.UpdateLabels(ctx, update.id, update.labels),
			}
		}(update)
	}
	group.Wait()
	close(outcomes)

	metrics := BatchMetrics{BatchSize: len(batch)}
	var failures []ReplayEntry
	for outcome := range outcomes {
		if outcome.err == nil {
			metrics.Successful++
			result.ItemsUpdated++
			continue
		}
		metrics.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("item #%d: %v", outcome.update.id, outcome.err))
		reconciler.logger.Warn("label update failed",
			"item", outcome.update.id,
			"error", outcome.err,
		)
		failures = append(failures, newReplayEntry(outcome.update, outcome.err))
	}
	metrics.Elapsed = reconciler.clock.Now().Sub(start)
	return metrics, failures
}

// finishRun stores the replay bundle (when there were failures) and
// the run report. Both are best-effort.
func (reconciler *Reconciler) finishRun(ctx context.Context, runID string, replay []ReplayEntry, checkpoint Checkpoint, result *Result) {
	if len(replay) > 0 {
		ref, err := reconciler.store.CreateReplayBundle(ctx, runID, checkpoint, replay)
		if err != nil {
			reconciler.logger.Warn("replay bundle save failed", "run", runID, "error", err)
		} else {
			result.ReplayRef = ref
			reconciler.logger.Info("replay bundle stored", "run", runID, "ref", ref, "entries", len(replay))
		}
	}

	if err := reconciler.store.GenerateReport(ctx, runID, result); err != nil {
		reconciler.logger.Warn("report save failed", "run", runID, "error", err)
	}

	reconciler.logger.Info("reconciliation finished",
		"run", runID,
		"updated", result.ItemsUpdated,
		"skipped", result.ItemsSkipped,
		"failed", len(replay),
		"errors", len(result.Errors),
	)
}

// uploadSnapshot encodes and stores the pre-pass corpus. Best-effort.
func (reconciler *Reconciler) uploadSnapshot(ctx context.Context, runID string, records []record.DependencyRecord, result *Result) {
	data, err := codec.Marshal(records)
	if err != nil {
		reconciler.logger.Warn("snapshot encoding failed", "run", runID, "error", err)
		return
	}
	ref, err := reconciler.store.UploadSnapshot(ctx, runID, data, map[string]string{
		"items": fmt.Sprintf("%d", len(records)),
	})
	if err != nil {
		reconciler.logger.Warn("snapshot upload failed", "run", runID, "error", err)
		return
	}
	result.SnapshotRef = ref
}

func (reconciler *Reconciler) cleanup() {
	if err := reconciler.store.Cleanup(); err != nil {
		reconciler.logger.Warn("artifact cleanup failed", "error", err)
	}
}

func (reconciler *Reconciler) newRunID() string {
	return "run-" + reconciler.clock.Now().UTC().Format("20060102-150405")
}

// newReplayEntry encodes a failed update as a replayable entry.
func newReplayEntry(update plannedUpdate, failure error) ReplayEntry {
	payload, err := codec.Marshal(updateLabelsPayload{Item: update.id, Labels: update.labels})
	if err != nil {
		// The payload is two plain fields; encoding cannot fail at
		// runtime. Record the failure rather than panicking.
		return ReplayEntry{Operation: opUpdateLabels, Error: fmt.Sprintf("encoding payload: %v (original: %v)", err, failure)}
	}
	return ReplayEntry{Operation: opUpdateLabels, Data: payload, Error: failure.Error()}
}

// estimateCompletion extrapolates the observed per-item rate over the
// remaining items.
func estimateCompletion(start, now time.Time, processed, total int) time.Time {
	if processed == 0 || total == 0 {
		return time.Time{}
	}
	perItem := now.Sub(start) / time.Duration(processed)
	return now.Add(perItem * time.Duration(total-processed))
}

// sortedIDs returns the set members in ascending order.
func sortedIDs(set map[record.ItemID]struct{}) []record.ItemID {
	ids := make([]record.ItemID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
