// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import "time"

// Item is a tracker issue as returned by the REST API.
type Item struct {
	Number    int64      `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	Labels    []Label    `json:"labels"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Closed reports whether the item is in the closed state.
func (item *Item) Closed() bool {
	return item.State == "closed"
}

// LabelNames returns the item's label names in declaration order.
func (item *Item) LabelNames() []string {
	names := make([]string, 0, len(item.Labels))
	for _, label := range item.Labels {
		names = append(names, label.Name)
	}
	return names
}

// Label is a tracker label attached to an item.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
