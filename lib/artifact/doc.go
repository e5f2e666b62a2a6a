// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact implements the local content-addressed store for
// reconciliation artifacts: corpus snapshots, checkpoints, replay
// bundles, and run reports.
//
// Payloads are compressed (lz4 or zstd, selected by size and an
// incompressibility probe), addressed by a BLAKE3 keyed hash of the
// uncompressed bytes, and written once under objects/. A per-run
// manifest under runs/ maps artifact kinds to object references, so a
// replay can find the bundle a failed run left behind.
package artifact
