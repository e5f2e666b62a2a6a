// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/forgeflow/depsync/lib/depgraph"
	"github.com/forgeflow/depsync/lib/record"
)

// Status label names written by the reconciler. Everything else on an
// item is left untouched.
const (
	LabelBlocked       = "blocked"
	LabelReady         = "ready"
	labelBlockedPrefix = "blocked-by:"
)

// StatusKind classifies an item's dependency state.
type StatusKind int

const (
	// StatusUnclassified: the item declares no dependencies. No
	// status labels apply; an item that never entered the dependency
	// workflow is not written to at all.
	StatusUnclassified StatusKind = iota

	// StatusBlocked: at least one declared dependency is incomplete.
	StatusBlocked

	// StatusReady: every declared dependency is complete.
	StatusReady
)

// Status is the computed dependency status of one item.
type Status struct {
	Kind StatusKind

	// BlockedBy is the number of incomplete dependencies. Nonzero
	// only for StatusBlocked.
	BlockedBy int
}

// StatusFor computes the status of an open item from the graph. Pure;
// uses only the pre-pass snapshot, so same-pass label writes never
// feed back into classification.
func StatusFor(graph *depgraph.Graph, id record.ItemID) Status {
	if len(graph.Nodes[id]) == 0 {
		return Status{Kind: StatusUnclassified}
	}
	if outstanding := graph.Outstanding(id); outstanding > 0 {
		return Status{Kind: StatusBlocked, BlockedBy: outstanding}
	}
	return Status{Kind: StatusReady}
}

// Labels returns the status labels for this status. Nil for
// StatusUnclassified.
func (status Status) Labels() []string {
	switch status.Kind {
	case StatusBlocked:
		return []string{LabelBlocked, fmt.Sprintf("%s%d", labelBlockedPrefix, status.BlockedBy)}
	case StatusReady:
		return []string{LabelReady}
	default:
		return nil
	}
}

// isStatusLabel reports whether a label name is managed by the
// reconciler.
func isStatusLabel(name string) bool {
	return name == LabelBlocked || name == LabelReady || strings.HasPrefix(name, labelBlockedPrefix)
}

// DesiredLabels merges an item's current labels with its computed
// status: non-status labels are preserved in place, stale status
// labels are removed, and the status's own labels are appended.
// Returns the merged set and whether it differs from current. An
// unchanged set means the write can be skipped, which makes a pass
// over a consistent corpus zero writes.
func DesiredLabels(current []string, status Status) ([]string, bool) {
	desired := make([]string, 0, len(current)+2)
	for _, label := range current {
		if !isStatusLabel(label) {
			desired = append(desired, label)
		}
	}
	desired = append(desired, status.Labels()...)

	return desired, !sameLabelSet(current, desired)
}

// sameLabelSet compares two label lists as sets.
func sameLabelSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := slices.Clone(a)
	sortedB := slices.Clone(b)
	slices.Sort(sortedA)
	slices.Sort(sortedB)
	return slices.Equal(sortedA, sortedB)
}
