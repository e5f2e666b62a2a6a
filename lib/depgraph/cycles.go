// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"fmt"
	"strings"

	"github.com/forgeflow/depsync/lib/record"
)

// Cycle is one circular reference set found in the graph. Members are
// listed in path order starting from the node the closing edge points
// back to.
type Cycle struct {
	Members     []record.ItemID
	Description string
}

// Cycles finds all circular reference sets reachable through
// incomplete dependency edges. Completed edges are skipped: a
// satisfied dependency cannot block anything, so a cycle among closed
// items is harmless and not reported.
//
// The traversal is depth-first from every unvisited node in ascending
// ID order, maintaining the current path as an explicit stack. When
// an edge reaches a node already on the stack, the path segment from
// that node to the top of the stack is one cycle. Each node is visited
// at most once as a traversal root, and a node already confirmed as a
// member of a reported cycle is not re-explored as a new root. Cycles
// are reported in the order their closing edge was discovered.
//
// Cycles are a data-quality signal, not an error: callers log them as
// warnings and exclude the members from readiness classification until
// the declarations are corrected.
func (graph *Graph) Cycles() []Cycle {
	visited := make(map[record.ItemID]struct{}, len(graph.Nodes))
	inCycle := make(map[record.ItemID]struct{})
	var cycles []Cycle

	for _, root := range graph.ids {
		if _, done := visited[root]; done {
			continue
		}
		if _, member := inCycle[root]; member {
			continue
		}
		cycles = graph.cyclesFrom(root, visited, inCycle, cycles)
	}

	return cycles
}

// dfsFrame is one level of the iterative depth-first traversal: the
// node and the index of the next outgoing edge to follow.
type dfsFrame struct {
	id   record.ItemID
	next int
}

// cyclesFrom runs one depth-first traversal rooted at root, appending
// any cycles whose closing edge it discovers.
func (graph *Graph) cyclesFrom(root record.ItemID, visited, inCycle map[record.ItemID]struct{}, cycles []Cycle) []Cycle {
	stack := []dfsFrame{{id: root}}
	onStack := map[record.ItemID]int{root: 0} // id → position in stack
	visited[root] = struct{}{}

	for len(stack) > 0 {
		frame := &stack[len(stack)-1]
		edges := graph.Nodes[frame.id]

		if frame.next >= len(edges) {
			delete(onStack, frame.id)
			stack = stack[:len(stack)-1]
			continue
		}

		edge := edges[frame.next]
		frame.next++

		if graph.edgeComplete(edge, nil) {
			continue
		}
		if _, inGraph := graph.Nodes[edge.On]; !inGraph {
			// External reference: cannot participate in a cycle.
			continue
		}

		if position, cycling := onStack[edge.On]; cycling {
			// The path segment from the back edge's target to the top
			// of the stack is one cycle.
			members := make([]record.ItemID, 0, len(stack)-position)
			for _, pathFrame := range stack[position:] {
				members = append(members, pathFrame.id)
				inCycle[pathFrame.id] = struct{}{}
			}
			cycles = append(cycles, Cycle{
				Members:     members,
				Description: describeCycle(members),
			})
			continue
		}

		if _, done := visited[edge.On]; done {
			continue
		}

		visited[edge.On] = struct{}{}
		onStack[edge.On] = len(stack)
		stack = append(stack, dfsFrame{id: edge.On})
	}

	return cycles
}

// describeCycle renders a cycle as "circular dependency: #1 -> #2 -> #1".
func describeCycle(members []record.ItemID) string {
	var builder strings.Builder
	builder.WriteString("circular dependency: ")
	for _, member := range members {
		fmt.Fprintf(&builder, "#%d -> ", member)
	}
	fmt.Fprintf(&builder, "#%d", members[0])
	return builder.String()
}
