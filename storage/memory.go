package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/procflow/procflow/types"
)

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	definitions map[string]*types.WorkflowDefinition
	eventLogs   map[string][]types.Event
	mu          sync.RWMutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		definitions: make(map[string]*types.WorkflowDefinition),
		eventLogs:   make(map[string][]types.Event),
	}
}

// getItem is a standalone generic helper function.
func getItem[T any](ctx context.Context, mu *sync.RWMutex, m map[string]T, key string, errNotFound error) (T, error) {
	return withContext(ctx, func() (T, error) {
		mu.RLock()
		defer mu.RUnlock()
		item, ok := m[key]
		if !ok {
			var zero T
			return zero, fmt.Errorf("%w: %s", errNotFound, key)
		}
		return item, nil
	})
}

// SaveDefinition stores a definition keyed by name and version.
func (s *MemoryStore) SaveDefinition(ctx context.Context, def *types.WorkflowDefinition) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.definitions[definitionKey(def.Name, def.Version)] = def
		return struct{}{}, nil
	})
	return err
}

// GetDefinition retrieves a definition by name and version.
func (s *MemoryStore) GetDefinition(ctx context.Context, name, version string) (*types.WorkflowDefinition, error) {
	return getItem(ctx, &s.mu, s.definitions, definitionKey(name, version), ErrDefinitionNotFound)
}

// SaveEventLog stores a copy of a run's event log.
func (s *MemoryStore) SaveEventLog(ctx context.Context, runID string, events []types.Event) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		log := make([]types.Event, len(events))
		copy(log, events)
		s.eventLogs[runID] = log
		return struct{}{}, nil
	})
	return err
}

// GetEventLog retrieves the event log of a run.
func (s *MemoryStore) GetEventLog(ctx context.Context, runID string) ([]types.Event, error) {
	return getItem(ctx, &s.mu, s.eventLogs, runID, ErrEventLogNotFound)
}
