// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package record

// ItemID identifies one work item in the tracked corpus. IDs are
// opaque and stable for the item's lifetime (for GitHub-backed corpora
// this is the issue number).
type ItemID int64

// Dependency is one declared dependency edge: the item it is declared
// on depends on Item On being completed. Completed is the parse-time
// snapshot from the body's checkbox state, not a live reference — it
// must be recomputed whenever the referenced item's state changes.
type Dependency struct {
	On        ItemID
	Completed bool
}

// DependencyRecord is the normalized view of one item's declared
// dependencies and state, as consumed by the graph builder.
type DependencyRecord struct {
	// Item is the declaring item's ID.
	Item ItemID

	// Closed reports whether the item itself is completed.
	Closed bool

	// Labels are the item's current status labels, used by the
	// reconciler to skip writes that would not change anything.
	Labels []string

	// Dependencies lists the declared edges in declaration order.
	Dependencies []Dependency

	// Metadata holds the "key: value" lines from the dependency
	// section, untouched by the graph engine.
	Metadata map[string]string
}
