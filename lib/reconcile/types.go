// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"time"

	"github.com/forgeflow/depsync/lib/record"
	"github.com/forgeflow/depsync/lib/tracker"
)

// Checkpoint is the resumable progress record emitted after each
// batch of a large run. Stored through the artifact store so an
// operator can see how far an interrupted run got.
type Checkpoint struct {
	TotalItems       int `cbor:"total_items"`
	ProcessedItems   int `cbor:"processed_items"`
	CompletedItems   int `cbor:"completed_items"`
	FailedItems      int `cbor:"failed_items"`
	CurrentBatchSize int `cbor:"current_batch_size"`

	StartTime      time.Time `cbor:"start_time"`
	LastUpdateTime time.Time `cbor:"last_update_time"`

	// EstimatedCompletionTime extrapolates the observed per-item rate
	// over the remaining items. Zero until at least one item has been
	// processed.
	EstimatedCompletionTime time.Time `cbor:"estimated_completion_time"`
}

// ReplayEntry is one failed operation, recorded with enough context
// to retry it without rebuilding the graph. Data is the CBOR-encoded
// operation payload.
type ReplayEntry struct {
	Operation string `cbor:"operation"`
	Data      []byte `cbor:"data"`
	Error     string `cbor:"error"`
}

// opUpdateLabels is the only replayable operation kind.
const opUpdateLabels = "update_labels"

// updateLabelsPayload is the CBOR payload of an update_labels replay
// entry.
type updateLabelsPayload struct {
	Item   record.ItemID `cbor:"item"`
	Labels []string      `cbor:"labels"`
}

// Result summarizes one reconciliation run.
type Result struct {
	// RunID identifies the run's artifacts in the store.
	RunID string `cbor:"run_id"`

	// ItemsUpdated is the number of items whose labels were written.
	ItemsUpdated int `cbor:"items_updated"`

	// DependenciesResolved is the number of open items whose full
	// dependency set was satisfied in this pass.
	DependenciesResolved int `cbor:"dependencies_resolved"`

	// ItemsSkipped counts items already carrying their computed
	// labels (no write issued).
	ItemsSkipped int `cbor:"items_skipped"`

	// ParseFailures counts items whose body could not be parsed and
	// were excluded from the graph.
	ParseFailures int `cbor:"parse_failures"`

	// Errors collects human-readable problems: parse failures, cycle
	// descriptions, per-item update failures. A non-empty Errors does
	// not mean the run failed; the run fails only when the initial
	// listing cannot complete.
	Errors []string `cbor:"errors,omitempty"`

	// Metrics records per-batch outcomes in dispatch order.
	Metrics []BatchMetrics `cbor:"metrics,omitempty"`

	// SnapshotRef and ReplayRef are artifact references, set when the
	// corresponding artifact was stored.
	SnapshotRef string `cbor:"snapshot_ref,omitempty"`
	ReplayRef   string `cbor:"replay_ref,omitempty"`
}

// ListFilter narrows a corpus listing.
type ListFilter struct {
	// State filters by item state: "open", "closed", or "all".
	State string

	// UpdatedSince, when nonzero, restricts the listing to items
	// updated at or after this instant.
	UpdatedSince time.Time
}

// TrackerClient is the scheduler's view of the forge. Implemented by
// RepoTracker over lib/tracker; tests use an in-memory fake.
type TrackerClient interface {
	// ListItems returns the items matching the filter. Listing
	// failures abort the run.
	ListItems(ctx context.Context, filter ListFilter) ([]tracker.Item, error)

	// UpdateLabels replaces the full label set on one item.
	UpdateLabels(ctx context.Context, id record.ItemID, labels []string) error
}

// ArtifactStore is the scheduler's view of artifact persistence. All
// methods except Cleanup are best-effort from the scheduler's
// perspective: failures are logged and never fail the run.
type ArtifactStore interface {
	// UploadSnapshot stores the full pre-pass corpus encoding and
	// returns its artifact reference.
	UploadSnapshot(ctx context.Context, runID string, data []byte, meta map[string]string) (string, error)

	// SaveCheckpoint stores the latest progress record for a run,
	// replacing any earlier checkpoint.
	SaveCheckpoint(ctx context.Context, runID string, checkpoint Checkpoint, meta map[string]string) error

	// CreateReplayBundle stores the run's failed operations together
	// with its final progress record, and returns the replay ID to
	// pass to ReplayFailed.
	CreateReplayBundle(ctx context.Context, runID string, checkpoint Checkpoint, entries []ReplayEntry) (string, error)

	// LoadReplayBundle returns the entries of a stored bundle.
	LoadReplayBundle(ctx context.Context, replayID string) ([]ReplayEntry, error)

	// GenerateReport stores the run's final Result.
	GenerateReport(ctx context.Context, runID string, result *Result) error

	// Cleanup reclaims temporary resources. Called exactly once per
	// run regardless of outcome.
	Cleanup() error
}
