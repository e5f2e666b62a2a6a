// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile implements the reconciliation scheduler: it turns
// a scanned item corpus into a dependency graph, classifies each open
// item as blocked or ready, and applies the resulting status labels
// through the tracker in adaptively sized concurrent batches.
//
// The scheduler depends only on the TrackerClient and ArtifactStore
// interfaces. Production wiring binds them to lib/tracker and
// lib/artifact; tests substitute in-memory fakes.
//
// Three operations exist: ReconcileFull re-scans the whole corpus in
// dependency-resolution order with snapshots and checkpoints,
// ReconcileIncremental updates only the dependents of a set of newly
// closed items, and ReplayFailed retries the failed subset of an
// earlier run from its stored replay bundle.
package reconcile
