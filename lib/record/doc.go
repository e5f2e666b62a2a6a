// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the normalized dependency declaration model
// and the parser that extracts declarations from item bodies.
//
// Items declare dependencies in a structured markdown section:
//
//	## Dependencies
//	- [ ] #12
//	- [x] #34
//
// Each task-list entry references another item by number. The checkbox
// state is a snapshot of the referenced item's completion at the time
// the body was last edited — it is advisory only, and is recomputed
// from live item state at the start of every reconciliation pass.
//
// Lines of the form "key: value" inside the section are collected as
// metadata. Prose lines are ignored. A checkbox entry that does not
// reference an item number is a *ParseError: the item is skipped by
// the reconciler and surfaced for operator attention, never retried
// automatically.
package record
