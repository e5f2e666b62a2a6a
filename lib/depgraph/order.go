// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"slices"

	"github.com/forgeflow/depsync/lib/record"
)

// Order is a best-effort dependency-resolution order over the graph's
// nodes. Items lists every node: first the resolvable portion, in an
// order where a node's outstanding dependencies precede it, then the
// unresolvable remainder (nodes trapped in a cycle or depending
// transitively on one, or on an external reference) in ascending ID
// order. Resolved counts the resolvable portion; Total counts all
// nodes.
type Order struct {
	Items    []record.ItemID
	Resolved int
	Total    int
}

// PlanOrder computes the resolution order by Kahn-style elimination
// over incomplete edges: repeatedly select all nodes with zero
// outstanding incomplete dependencies, append them (ascending ID for
// determinism), and decrement their dependents' outstanding counts.
// Completed dependencies are not outstanding and impose no ordering.
//
// The scheduler processes full scans in this order so that a
// dependency's fresh status is likely already applied before its
// dependent is evaluated, reducing redundant re-evaluation in
// subsequent passes.
func (graph *Graph) PlanOrder() Order {
	order := Order{Total: len(graph.Nodes)}

	// Count each node's outstanding (incomplete) dependency edges.
	outstanding := make(map[record.ItemID]int, len(graph.Nodes))
	for _, id := range graph.ids {
		count := 0
		for _, edge := range graph.Nodes[id] {
			if !graph.edgeComplete(edge, nil) {
				count++
			}
		}
		outstanding[id] = count
	}

	// Seed the first elimination round.
	var eligible []record.ItemID
	for _, id := range graph.ids {
		if outstanding[id] == 0 {
			eligible = append(eligible, id)
		}
	}

	placed := make(map[record.ItemID]struct{}, len(graph.Nodes))
	for len(eligible) > 0 {
		slices.Sort(eligible)
		round := eligible
		eligible = nil

		for _, id := range round {
			order.Items = append(order.Items, id)
			placed[id] = struct{}{}

			// Eliminating id satisfies the ordering constraint of every
			// incomplete edge pointing at it.
			for dependent := range graph.Reverse[id] {
				if _, done := placed[dependent]; done {
					continue
				}
				if !graph.dependsIncomplete(dependent, id) {
					continue
				}
				outstanding[dependent]--
				if outstanding[dependent] == 0 {
					eligible = append(eligible, dependent)
				}
			}
		}
	}

	order.Resolved = len(order.Items)

	// The remainder is blocked by a cycle or an external reference.
	// Append in ascending ID order (the graph's discovery order).
	for _, id := range graph.ids {
		if _, done := placed[id]; !done {
			order.Items = append(order.Items, id)
		}
	}

	return order
}

// dependsIncomplete reports whether dependent has an incomplete edge
// onto target.
func (graph *Graph) dependsIncomplete(dependent, target record.ItemID) bool {
	for _, edge := range graph.Nodes[dependent] {
		if edge.On == target && !graph.edgeComplete(edge, nil) {
			return true
		}
	}
	return false
}
