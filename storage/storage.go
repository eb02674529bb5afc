// Package storage persists definitions and event logs between engine calls.
//
// The engine itself never touches storage: a run is rebuilt from its
// recorded events via replay, so a Store only needs to keep definitions and
// append-only event logs. Durability is the caller's concern; this package
// provides an in-memory store and a Redis-backed one.
package storage

import (
	"context"
	"errors"

	"github.com/procflow/procflow/types"
)

// Errors shared by Store implementations.
var (
	ErrDefinitionNotFound = errors.New("workflow definition not found")
	ErrEventLogNotFound   = errors.New("event log not found")
)

// Store persists workflow definitions and per-run event logs.
type Store interface {
	// SaveDefinition stores a validated definition keyed by name and version.
	SaveDefinition(ctx context.Context, def *types.WorkflowDefinition) error

	// GetDefinition retrieves a definition by name and version.
	GetDefinition(ctx context.Context, name, version string) (*types.WorkflowDefinition, error)

	// SaveEventLog stores the full event log of a run.
	SaveEventLog(ctx context.Context, runID string, events []types.Event) error

	// GetEventLog retrieves the event log of a run.
	GetEventLog(ctx context.Context, runID string) ([]types.Event, error)
}

// definitionKey builds the composite key a definition is stored under.
func definitionKey(name, version string) string {
	return name + "@" + version
}

// withContext is a standalone generic helper function.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}
