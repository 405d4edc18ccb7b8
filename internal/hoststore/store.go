// Package hoststore persists authoring state for hosts that have no native
// scene storage: a single context-data blob plus one JSON payload per
// instance. Memory, SQLite and Postgres backends share the same contract.
package hoststore

import (
	"context"
	"fmt"
)

// Store is the persistence contract of the host adapter.
type Store interface {
	// LoadContextData returns the context-level data blob. A store with
	// no saved blob returns an empty map.
	LoadContextData(ctx context.Context) (map[string]any, error)
	// SaveContextData replaces the context-level data blob.
	SaveContextData(ctx context.Context, data map[string]any) error
	// ListInstances returns all instance payloads in insertion order.
	ListInstances(ctx context.Context) ([]map[string]any, error)
	// UpsertInstance stores one instance payload under its id.
	UpsertInstance(ctx context.Context, id string, data map[string]any) error
	// DeleteInstance removes one instance payload. Unknown ids return
	// NotFoundError.
	DeleteInstance(ctx context.Context, id string) error
	// Close releases backend resources.
	Close() error
}

// NotFoundError reports a missing instance payload.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("instance %q not found", e.ID)
}
