// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package depgraph builds and analyzes the item dependency graph.
//
// The graph is constructed fresh at the start of every reconciliation
// pass from the normalized dependency records and discarded at the
// end — the item tracker is the source of truth, and rebuilding is
// cheaper than keeping an incrementally patched graph consistent with
// external state.
//
// Four analyses are provided:
//
//   - Cycles finds all circular reference sets. Cycles are a data
//     error in the corpus, surfaced as warnings; their members are
//     never eligible to become ready until the declarations are fixed.
//   - PlanOrder computes a best-effort dependency-resolution order
//     (Kahn elimination), tolerating cycles by appending trapped nodes
//     as unresolved.
//   - Unblockable computes, from a set of newly-closed items, the
//     minimal set of dependents whose status may have changed. This is
//     the incremental path: cost is proportional to the affected
//     dependents, not the corpus, which is the reason the graph keeps
//     reverse edges at all.
//   - ReadySet evaluates every node against the same readiness rule,
//     for full re-scans.
//
// All analyses iterate nodes in ascending item ID so results are
// deterministic for a given input multiset.
package depgraph
