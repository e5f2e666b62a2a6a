// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/forgeflow/depsync/lib/artifact"
	"github.com/forgeflow/depsync/lib/clock"
	"github.com/forgeflow/depsync/lib/testutil"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir(), clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewArchive(store)
}

func TestArchive_ReplayBundleRoundTrip(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	entries := []ReplayEntry{
		{Operation: "update_labels", Data: []byte{0xa0}, Error: "HTTP 500"},
		{Operation: "update_labels", Data: []byte{0xa1, 0x01, 0x02}, Error: "HTTP 429"},
	}
	checkpoint := Checkpoint{TotalItems: 2, ProcessedItems: 2, FailedItems: 2, CurrentBatchSize: 10}
	runID := testutil.UniqueID("run")
	replayID, err := archive.CreateReplayBundle(ctx, runID, checkpoint, entries)
	if err != nil {
		t.Fatalf("CreateReplayBundle: %v", err)
	}
	if replayID != runID {
		t.Errorf("replayID = %q, want the run ID %q", replayID, runID)
	}

	loaded, err := archive.LoadReplayBundle(ctx, replayID)
	if err != nil {
		t.Fatalf("LoadReplayBundle: %v", err)
	}
	if !reflect.DeepEqual(loaded, entries) {
		t.Errorf("round trip mismatch: %+v != %+v", loaded, entries)
	}
}

func TestArchive_CheckpointAndReport(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	checkpoint := Checkpoint{
		TotalItems:       120,
		ProcessedItems:   40,
		CompletedItems:   38,
		FailedItems:      2,
		CurrentBatchSize: 15,
		StartTime:        time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		LastUpdateTime:   time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC),
	}
	if err := archive.SaveCheckpoint(ctx, "run-1", checkpoint, map[string]string{"mode": "full"}); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	result := &Result{RunID: "run-1", ItemsUpdated: 38, Errors: []string{"item #7: HTTP 500"}}
	if err := archive.GenerateReport(ctx, "run-1", result); err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if err := archive.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}

func TestArchive_MissingBundle(t *testing.T) {
	archive := newTestArchive(t)
	if _, err := archive.LoadReplayBundle(context.Background(), "run-none"); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArchive_SnapshotRef(t *testing.T) {
	archive := newTestArchive(t)
	ref, err := archive.UploadSnapshot(context.Background(), "run-1", []byte("corpus snapshot bytes"), map[string]string{"items": "3"})
	if err != nil {
		t.Fatalf("UploadSnapshot: %v", err)
	}
	if ref == "" {
		t.Error("empty snapshot ref")
	}
}
