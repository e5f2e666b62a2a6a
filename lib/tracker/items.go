// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"fmt"
)

// ListItemsOptions controls filtering and pagination for ListItems.
type ListItemsOptions struct {
	State   string // "open", "closed", "all" (default: "open")
	Sort    string // "created", "updated" (default: "created")
	Since   string // ISO 8601 timestamp; only items updated at or after
	PerPage int    // results per page (max 100, default 30)
}

func (options ListItemsOptions) queryParams() string {
	query := ""
	if options.State != "" {
		query += "state=" + options.State + "&"
	}
	if options.Sort != "" {
		query += "sort=" + options.Sort + "&"
	}
	if options.Since != "" {
		query += "since=" + options.Since + "&"
	}
	if options.PerPage > 0 {
		query += fmt.Sprintf("per_page=%d&", options.PerPage)
	}
	if query != "" {
		return query[:len(query)-1] // trim trailing &
	}
	return ""
}

// ListItems returns a paginated iterator over items in a repository.
func (client *Client) ListItems(ctx context.Context, owner, repo string, options ListItemsOptions) *PageIterator[Item] {
	basePath := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	return list[Item](client, buildListPath(basePath, options))
}

// GetItem retrieves a single item by number.
func (client *Client) GetItem(ctx context.Context, owner, repo string, number int64) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := client.get(ctx, path, &item); err != nil {
		return nil, fmt.Errorf("getting item %s/%s#%d: %w", owner, repo, number, err)
	}
	return &item, nil
}

// SetLabels replaces the full label set on an item. The tracker
// returns the resulting labels.
func (client *Client) SetLabels(ctx context.Context, owner, repo string, number int64, labels []string) ([]Label, error) {
	request := struct {
		Labels []string `json:"labels"`
	}{Labels: labels}
	// An empty slice must still serialize as [], not null, to clear
	// all labels.
	if request.Labels == nil {
		request.Labels = []string{}
	}

	var result []Label
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/labels", owner, repo, number)
	if err := client.put(ctx, path, request, &result); err != nil {
		return nil, fmt.Errorf("setting labels on %s/%s#%d: %w", owner, repo, number, err)
	}
	return result, nil
}

// UpdateItemRequest contains the fields for updating an item. Only
// non-nil fields are sent in the PATCH request.
type UpdateItemRequest struct {
	Title  *string  `json:"title,omitempty"`
	Body   *string  `json:"body,omitempty"`
	State  *string  `json:"state,omitempty"` // "open" or "closed"
	Labels []string `json:"labels,omitempty"`
}

// UpdateItem updates an existing item.
func (client *Client) UpdateItem(ctx context.Context, owner, repo string, number int64, request UpdateItemRequest) (*Item, error) {
	var item Item
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := client.patch(ctx, path, request, &item); err != nil {
		return nil, fmt.Errorf("updating item %s/%s#%d: %w", owner, repo, number, err)
	}
	return &item, nil
}
