package api

import (
	"context"
	"encoding/json"
)

// Snapshot is a read-only nested JSON document fetched from the backend
// and rendered verbatim (remote configuration, detailed health). There is
// no mutation path, so no typed mirror of the backend's internals exists.
type Snapshot map[string]json.RawMessage

// ConfigSnapshot fetches the backend's configuration document.
func (c *Client) ConfigSnapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	if err := c.get(ctx, "/config", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HealthDetailed fetches the backend's detailed health document.
func (c *Client) HealthDetailed(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	if err := c.get(ctx, "/health/detailed", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
