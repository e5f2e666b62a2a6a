// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"

	"github.com/forgeflow/depsync/lib/artifact"
	"github.com/forgeflow/depsync/lib/codec"
)

// Archive binds the ArtifactStore contract to a local artifact.Store,
// serializing scheduler types as deterministic CBOR. The replay ID
// returned by CreateReplayBundle is the run ID itself; the bundle
// lives in that run's manifest.
type Archive struct {
	store *artifact.Store
}

// NewArchive wraps a local artifact store.
func NewArchive(store *artifact.Store) *Archive {
	return &Archive{store: store}
}

var _ ArtifactStore = (*Archive)(nil)

func (archive *Archive) UploadSnapshot(_ context.Context, runID string, data []byte, meta map[string]string) (string, error) {
	ref, err := archive.store.Save(artifact.KindSnapshot, runID, data, meta)
	if err != nil {
		return "", fmt.Errorf("uploading snapshot: %w", err)
	}
	return ref, nil
}

func (archive *Archive) SaveCheckpoint(_ context.Context, runID string, checkpoint Checkpoint, meta map[string]string) error {
	data, err := codec.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if _, err := archive.store.Save(artifact.KindCheckpoint, runID, data, meta); err != nil {
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// replayBundle is the stored form of a run's failures: the run's final
// progress record plus the failed operations.
type replayBundle struct {
	Checkpoint Checkpoint    `cbor:"checkpoint"`
	Entries    []ReplayEntry `cbor:"entries"`
}

func (archive *Archive) CreateReplayBundle(_ context.Context, runID string, checkpoint Checkpoint, entries []ReplayEntry) (string, error) {
	data, err := codec.Marshal(replayBundle{Checkpoint: checkpoint, Entries: entries})
	if err != nil {
		return "", fmt.Errorf("encoding replay bundle: %w", err)
	}
	if _, err := archive.store.Save(artifact.KindReplay, runID, data, map[string]string{
		"entries": fmt.Sprintf("%d", len(entries)),
	}); err != nil {
		return "", fmt.Errorf("saving replay bundle: %w", err)
	}
	return runID, nil
}

func (archive *Archive) LoadReplayBundle(_ context.Context, replayID string) ([]ReplayEntry, error) {
	data, err := archive.store.Load(artifact.KindReplay, replayID)
	if err != nil {
		return nil, err
	}
	var bundle replayBundle
	if err := codec.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decoding replay bundle %s: %w", replayID, err)
	}
	return bundle.Entries, nil
}

func (archive *Archive) GenerateReport(_ context.Context, runID string, result *Result) error {
	data, err := codec.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if _, err := archive.store.Save(artifact.KindReport, runID, data, nil); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (archive *Archive) Cleanup() error {
	return archive.store.Cleanup()
}
