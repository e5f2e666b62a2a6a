// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"slices"
	"testing"

	"github.com/forgeflow/depsync/lib/record"
)

// --- Test helpers ---

// dep constructs an incomplete dependency on the given item.
func dep(on record.ItemID) record.Dependency {
	return record.Dependency{On: on}
}

// doneDep constructs a completed dependency on the given item.
func doneDep(on record.ItemID) record.Dependency {
	return record.Dependency{On: on, Completed: true}
}

// open constructs an open item's record with the given dependencies.
func open(item record.ItemID, dependencies ...record.Dependency) record.DependencyRecord {
	return record.DependencyRecord{Item: item, Dependencies: dependencies}
}

// closed constructs a closed item's record with the given dependencies.
func closed(item record.ItemID, dependencies ...record.Dependency) record.DependencyRecord {
	return record.DependencyRecord{Item: item, Closed: true, Dependencies: dependencies}
}

// idSet builds a set from item IDs.
func idSet(ids ...record.ItemID) map[record.ItemID]struct{} {
	set := make(map[record.ItemID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// sortedIDs returns the set's members in ascending order.
func sortedIDs(set map[record.ItemID]struct{}) []record.ItemID {
	ids := make([]record.ItemID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// --- Build ---

func TestBuildMirrorsReverseEdges(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, dep(1)),
		open(3, dep(1), dep(2)),
	})

	for id, edges := range graph.Nodes {
		for _, edge := range edges {
			dependents, exists := graph.Reverse[edge.On]
			if !exists {
				t.Fatalf("edge %d->%d has no Reverse entry", id, edge.On)
			}
			if _, mirrored := dependents[id]; !mirrored {
				t.Errorf("edge %d->%d not mirrored in Reverse", id, edge.On)
			}
		}
	}

	if got := graph.Dependents(1); !slices.Equal(got, []record.ItemID{2, 3}) {
		t.Errorf("Dependents(1) = %v, want [2 3]", got)
	}
}

func TestBuildDanglingReference(t *testing.T) {
	// Item 2 depends on item 99, which is outside the scanned set.
	graph := Build([]record.DependencyRecord{
		open(2, dep(99)),
	})

	if _, exists := graph.Nodes[99]; exists {
		t.Error("external reference 99 must not appear as a Nodes key")
	}
	if _, exists := graph.Reverse[99]; !exists {
		t.Error("external reference 99 must appear in Reverse")
	}
	if graph.Outstanding(2) != 1 {
		t.Errorf("Outstanding(2) = %d, want 1 (external reference never completes)", graph.Outstanding(2))
	}
}

func TestBuildDuplicateEdgesCollapse(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2), doneDep(2), dep(2)),
	})
	if got := len(graph.Nodes[1]); got != 1 {
		t.Fatalf("edges for item 1 = %d, want 1", got)
	}
	// First declaration wins.
	if graph.Nodes[1][0].Completed {
		t.Error("collapsed edge kept a later declaration's snapshot")
	}
}

func TestBuildLaterRecordReplacesEarlier(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(1, dep(3)),
	})
	if got := len(graph.Nodes[1]); got != 1 || graph.Nodes[1][0].On != 3 {
		t.Fatalf("Nodes[1] = %v, want single edge onto 3", graph.Nodes[1])
	}
	if _, stale := graph.Reverse[2]; stale {
		t.Error("replaced record's reverse edge not cleaned up")
	}
}

func TestBuildDeterministic(t *testing.T) {
	records := []record.DependencyRecord{
		open(3, dep(1), dep(2)),
		closed(1),
		open(2, dep(1)),
	}
	first := Build(records)
	second := Build(records)

	firstOrder := first.PlanOrder()
	secondOrder := second.PlanOrder()
	if !slices.Equal(firstOrder.Items, secondOrder.Items) {
		t.Fatalf("order differs between identical builds: %v vs %v", firstOrder.Items, secondOrder.Items)
	}
}

// --- Cycles ---

func TestCyclesTwoNodeCycle(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(2, dep(1)),
	})

	cycles := graph.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("cycles = %v, want exactly one", cycles)
	}
	members := slices.Clone(cycles[0].Members)
	slices.Sort(members)
	if !slices.Equal(members, []record.ItemID{1, 2}) {
		t.Errorf("cycle members = %v, want [1 2]", cycles[0].Members)
	}
	if cycles[0].Description == "" {
		t.Error("cycle description is empty")
	}
}

func TestCyclesSelfReference(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(1)),
	})
	cycles := graph.Cycles()
	if len(cycles) != 1 || !slices.Equal(cycles[0].Members, []record.ItemID{1}) {
		t.Fatalf("cycles = %v, want one self-cycle [1]", cycles)
	}
}

func TestCyclesDisjointCyclesReportedSeparately(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(2, dep(1)),
		open(10, dep(11)),
		open(11, dep(10)),
	})
	cycles := graph.Cycles()
	if len(cycles) != 2 {
		t.Fatalf("cycles = %v, want two", cycles)
	}
}

func TestCyclesCompletedEdgesIgnored(t *testing.T) {
	// Structural cycle, but one edge is satisfied: nothing is blocked,
	// so no cycle is reported.
	graph := Build([]record.DependencyRecord{
		open(1, doneDep(2)),
		open(2, dep(1)),
	})
	if cycles := graph.Cycles(); len(cycles) != 0 {
		t.Fatalf("cycles = %v, want none for satisfied edge", cycles)
	}
}

func TestCyclesAcyclicGraph(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, dep(1)),
		open(3, dep(1), dep(2)),
	})
	if cycles := graph.Cycles(); len(cycles) != 0 {
		t.Fatalf("cycles = %v, want none", cycles)
	}
}

// --- PlanOrder ---

func TestPlanOrderTopological(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, dep(1)),
		open(3, dep(2)),
		open(4, dep(1), dep(3)),
	})

	order := graph.PlanOrder()
	if order.Resolved != 4 || order.Total != 4 {
		t.Fatalf("Resolved/Total = %d/%d, want 4/4", order.Resolved, order.Total)
	}

	position := make(map[record.ItemID]int, len(order.Items))
	for i, id := range order.Items {
		position[id] = i
	}
	for id, edges := range graph.Nodes {
		for _, edge := range edges {
			if graph.edgeComplete(edge, nil) {
				continue
			}
			if position[edge.On] >= position[id] {
				t.Errorf("dependency %d of %d appears at %d, after %d",
					edge.On, id, position[edge.On], position[id])
			}
		}
	}
}

func TestPlanOrderTieBreakAscending(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(5),
		open(3),
		open(9),
	})
	order := graph.PlanOrder()
	if !slices.Equal(order.Items, []record.ItemID{3, 5, 9}) {
		t.Fatalf("order = %v, want ascending [3 5 9]", order.Items)
	}
}

func TestPlanOrderCycleUnresolved(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(2, dep(1)),
	})
	order := graph.PlanOrder()
	if order.Resolved != 0 || order.Total != 2 {
		t.Fatalf("Resolved/Total = %d/%d, want 0/2", order.Resolved, order.Total)
	}
	if !slices.Equal(order.Items, []record.ItemID{1, 2}) {
		t.Fatalf("remainder = %v, want [1 2] in discovery order", order.Items)
	}
}

func TestPlanOrderCycleDependentUnresolved(t *testing.T) {
	// Item 3 is acyclic itself but transitively blocked by the 1<->2
	// cycle; it must be counted unresolved.
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(2, dep(1)),
		open(3, dep(2)),
		open(4),
	})
	order := graph.PlanOrder()
	if order.Resolved != 1 {
		t.Fatalf("Resolved = %d, want 1 (only item 4)", order.Resolved)
	}
	if order.Items[0] != 4 {
		t.Fatalf("order = %v, want item 4 first", order.Items)
	}
}

func TestPlanOrderCompletedEdgesImposeNoOrdering(t *testing.T) {
	// Item 2's only dependency is satisfied, so it is eligible in the
	// first round even though item 1 is also unplaced.
	graph := Build([]record.DependencyRecord{
		open(1, dep(99)),
		open(2, doneDep(1)),
	})
	order := graph.PlanOrder()
	if order.Resolved != 1 || order.Items[0] != 2 {
		t.Fatalf("order = %+v, want item 2 resolved first", order)
	}
}

// --- Unblockable / ReadySet ---

func TestUnblockableLastBlockerClosed(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, dep(1)),
		open(3, dep(1), dep(2)),
	})

	// Closing item 1: item 2 loses its last blocker; item 3 still
	// waits on item 2.
	result := graph.Unblockable(idSet(1))
	if !slices.Equal(sortedIDs(result), []record.ItemID{2}) {
		t.Fatalf("Unblockable({1}) = %v, want {2}", sortedIDs(result))
	}

	// Closing both: item 3 becomes unblockable.
	result = graph.Unblockable(idSet(1, 2))
	if !slices.Equal(sortedIDs(result), []record.ItemID{2, 3}) {
		t.Fatalf("Unblockable({1,2}) = %v, want {2,3}", sortedIDs(result))
	}
}

func TestUnblockableNoDependents(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		open(5),
	})
	if result := graph.Unblockable(idSet(5)); len(result) != 0 {
		t.Fatalf("Unblockable({5}) = %v, want empty", sortedIDs(result))
	}
}

func TestUnblockableClosedDependentSkipped(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1),
		closed(2, dep(1)),
	})
	if result := graph.Unblockable(idSet(1)); len(result) != 0 {
		t.Fatalf("Unblockable({1}) = %v, want empty (dependent already closed)", sortedIDs(result))
	}
}

func TestUnblockableDoesNotCascade(t *testing.T) {
	// 3 depends on 2 depends on 1. Closing 1 makes 2 unblockable, but
	// 2 is only ready, not closed — 3 stays blocked until the next pass.
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, dep(1)),
		open(3, dep(2)),
	})
	result := graph.Unblockable(idSet(1))
	if !slices.Equal(sortedIDs(result), []record.ItemID{2}) {
		t.Fatalf("Unblockable({1}) = %v, want {2} only", sortedIDs(result))
	}
}

func TestReadySetFullScan(t *testing.T) {
	// The worked example: 1 has no deps, 2's sole dependency is
	// complete, 3 still waits on 2.
	graph := Build([]record.DependencyRecord{
		open(1),
		open(2, doneDep(1)),
		open(3, doneDep(1), dep(2)),
	})

	ready := graph.ReadySet()
	if !slices.Equal(sortedIDs(ready), []record.ItemID{1, 2}) {
		t.Fatalf("ReadySet = %v, want {1,2}", sortedIDs(ready))
	}
	if graph.Outstanding(3) != 1 {
		t.Errorf("Outstanding(3) = %d, want 1", graph.Outstanding(3))
	}
}

func TestReadySetCycleMembersNeverReady(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		open(1, dep(2)),
		open(2, dep(1)),
	})
	if ready := graph.ReadySet(); len(ready) != 0 {
		t.Fatalf("ReadySet = %v, want empty for cycle members", sortedIDs(ready))
	}
}

func TestReadySetSkipsClosedItems(t *testing.T) {
	graph := Build([]record.DependencyRecord{
		closed(1),
		open(2, dep(1)),
	})
	// Item 1 is closed (not actionable); item 2's dependency on it is
	// complete via live state even though the snapshot says otherwise.
	ready := graph.ReadySet()
	if !slices.Equal(sortedIDs(ready), []record.ItemID{2}) {
		t.Fatalf("ReadySet = %v, want {2}", sortedIDs(ready))
	}
}
