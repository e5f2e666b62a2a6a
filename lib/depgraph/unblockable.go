// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"github.com/forgeflow/depsync/lib/record"
)

// Unblockable computes the set of items whose status may have flipped
// to ready now that the given items are closed. It walks the reverse
// edges of each newly-closed item — visiting only affected dependents,
// never the whole corpus — and re-evaluates each dependent's full
// dependency list. A dependent is included only if every one of its
// dependencies is complete, counting the caller's closed set as
// complete.
//
// Dependents that are themselves closed are skipped: closing an item's
// last blocker does not make the closed dependent actionable again.
// Items becoming ready are not treated as closed, so the walk does not
// cascade; second-order unblocking is picked up by the next pass.
func (graph *Graph) Unblockable(closedIDs map[record.ItemID]struct{}) map[record.ItemID]struct{} {
	result := make(map[record.ItemID]struct{})
	visited := make(map[record.ItemID]struct{})

	for closed := range closedIDs {
		for dependent := range graph.Reverse[closed] {
			if _, seen := visited[dependent]; seen {
				continue
			}
			visited[dependent] = struct{}{}

			if graph.Closed(dependent) {
				continue
			}
			if graph.allComplete(dependent, closedIDs) {
				result[dependent] = struct{}{}
			}
		}
	}

	return result
}

// ReadySet evaluates every open node against the readiness rule: all
// dependency edges complete. Items with zero declared dependencies are
// vacuously ready. Used by full re-scans, where no specific
// just-closed set is known.
func (graph *Graph) ReadySet() map[record.ItemID]struct{} {
	result := make(map[record.ItemID]struct{})
	for _, id := range graph.ids {
		if graph.Closed(id) {
			continue
		}
		if graph.allComplete(id, nil) {
			result[id] = struct{}{}
		}
	}
	return result
}

// allComplete reports whether every dependency edge of id is complete,
// counting alsoClosed targets as complete.
func (graph *Graph) allComplete(id record.ItemID, alsoClosed map[record.ItemID]struct{}) bool {
	for _, edge := range graph.Nodes[id] {
		if !graph.edgeComplete(edge, alsoClosed) {
			return false
		}
	}
	return true
}
