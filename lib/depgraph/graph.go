// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"slices"

	"github.com/forgeflow/depsync/lib/record"
)

// Edge is one dependency edge: From depends on On. Completed is the
// completion state of On as known when the graph was built.
type Edge struct {
	From      record.ItemID
	On        record.ItemID
	Completed bool
}

// Graph is the dependency graph for one reconciliation pass.
//
// Nodes maps each declaring item to its outgoing dependency edges.
// Reverse maps each item to the set of items that depend on it. Every
// edge in Nodes has a mirrored entry in Reverse. An ID may appear in
// Reverse (and in edges) without being a Nodes key: a dependency on an
// item outside the scanned set. Such external references are never
// completed by this system and permanently block their dependents.
//
// Construct with [Build]. Not safe for concurrent mutation; all
// analysis methods are read-only.
type Graph struct {
	Nodes   map[record.ItemID][]Edge
	Reverse map[record.ItemID]map[record.ItemID]struct{}

	// closed is the set of scanned items known to be completed.
	closed map[record.ItemID]struct{}

	// ids caches the Nodes keys in ascending order for deterministic
	// iteration.
	ids []record.ItemID
}

// Build converts dependency records into a Graph. Later records for
// the same item replace earlier ones; duplicate declarations of the
// same (from, on) pair collapse to a single edge, keeping the first
// declaration's completion snapshot. Deterministic for a given input
// multiset. No side effects.
func Build(records []record.DependencyRecord) *Graph {
	graph := &Graph{
		Nodes:   make(map[record.ItemID][]Edge, len(records)),
		Reverse: make(map[record.ItemID]map[record.ItemID]struct{}),
		closed:  make(map[record.ItemID]struct{}),
	}

	for _, rec := range records {
		// Replacement: drop any earlier record's state for this item
		// before inserting the new one.
		if _, exists := graph.Nodes[rec.Item]; exists {
			graph.removeNode(rec.Item)
		}

		edges := make([]Edge, 0, len(rec.Dependencies))
		seen := make(map[record.ItemID]struct{}, len(rec.Dependencies))
		for _, dependency := range rec.Dependencies {
			if _, duplicate := seen[dependency.On]; duplicate {
				continue
			}
			seen[dependency.On] = struct{}{}
			edges = append(edges, Edge{
				From:      rec.Item,
				On:        dependency.On,
				Completed: dependency.Completed,
			})
		}

		graph.Nodes[rec.Item] = edges
		for _, edge := range edges {
			dependents, exists := graph.Reverse[edge.On]
			if !exists {
				dependents = make(map[record.ItemID]struct{})
				graph.Reverse[edge.On] = dependents
			}
			dependents[rec.Item] = struct{}{}
		}

		if rec.Closed {
			graph.closed[rec.Item] = struct{}{}
		} else {
			delete(graph.closed, rec.Item)
		}
	}

	graph.ids = make([]record.ItemID, 0, len(graph.Nodes))
	for id := range graph.Nodes {
		graph.ids = append(graph.ids, id)
	}
	slices.Sort(graph.ids)

	return graph
}

// Len returns the number of declared nodes in the graph.
func (graph *Graph) Len() int {
	return len(graph.Nodes)
}

// Closed reports whether the given scanned item is known completed.
func (graph *Graph) Closed(id record.ItemID) bool {
	_, closed := graph.closed[id]
	return closed
}

// Dependents returns the IDs that directly depend on id, in ascending
// order. Returns nil if nothing depends on it.
func (graph *Graph) Dependents(id record.ItemID) []record.ItemID {
	dependents, exists := graph.Reverse[id]
	if !exists {
		return nil
	}
	result := make([]record.ItemID, 0, len(dependents))
	for dependent := range dependents {
		result = append(result, dependent)
	}
	slices.Sort(result)
	return result
}

// Outstanding returns the number of id's dependency edges that are not
// complete. Zero for items with no declared dependencies and for IDs
// not in the graph.
func (graph *Graph) Outstanding(id record.ItemID) int {
	count := 0
	for _, edge := range graph.Nodes[id] {
		if !graph.edgeComplete(edge, nil) {
			count++
		}
	}
	return count
}

// edgeComplete reports whether a dependency edge is satisfied: the
// build-time snapshot says so, the target is a scanned item known
// closed, or the target is in the caller's additional closed set.
// External references (targets outside the scanned set) are complete
// only via the snapshot or the additional set.
func (graph *Graph) edgeComplete(edge Edge, alsoClosed map[record.ItemID]struct{}) bool {
	if edge.Completed {
		return true
	}
	if _, closed := graph.closed[edge.On]; closed {
		return true
	}
	if alsoClosed != nil {
		if _, closed := alsoClosed[edge.On]; closed {
			return true
		}
	}
	return false
}

// removeNode erases an item's edges and reverse entries. Used by Build
// when a later record replaces an earlier one.
func (graph *Graph) removeNode(id record.ItemID) {
	for _, edge := range graph.Nodes[id] {
		dependents, exists := graph.Reverse[edge.On]
		if !exists {
			continue
		}
		delete(dependents, id)
		if len(dependents) == 0 {
			delete(graph.Reverse, edge.On)
		}
	}
	delete(graph.Nodes, id)
	delete(graph.closed, id)
}
