// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"time"

	"github.com/forgeflow/depsync/lib/record"
	"github.com/forgeflow/depsync/lib/tracker"
)

// RepoTracker binds the TrackerClient contract to one repository of a
// tracker.Client.
type RepoTracker struct {
	client  *tracker.Client
	owner   string
	repo    string
	perPage int
}

// NewRepoTracker creates a TrackerClient for the given repository.
// perPage bounds page size for listings; zero selects the tracker's
// default.
func NewRepoTracker(client *tracker.Client, owner, repo string, perPage int) *RepoTracker {
	return &RepoTracker{client: client, owner: owner, repo: repo, perPage: perPage}
}

var _ TrackerClient = (*RepoTracker)(nil)

func (binding *RepoTracker) ListItems(ctx context.Context, filter ListFilter) ([]tracker.Item, error) {
	options := tracker.ListItemsOptions{
		State:   filter.State,
		PerPage: binding.perPage,
	}
	if !filter.UpdatedSince.IsZero() {
		options.Since = filter.UpdatedSince.UTC().Format(time.RFC3339)
	}
	return binding.client.ListItems(ctx, binding.owner, binding.repo, options).Collect(ctx)
}

func (binding *RepoTracker) UpdateLabels(ctx context.Context, id record.ItemID, labels []string) error {
	_, err := binding.client.SetLabels(ctx, binding.owner, binding.repo, int64(id), labels)
	return err
}
