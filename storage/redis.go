package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/procflow/procflow/types"
)

const (
	definitionPrefix = "procflow:definition:"
	eventLogPrefix   = "procflow:eventlog:"
)

// RedisStore is a Redis-backed implementation of the Store interface.
// Values are stored as JSON; event timestamps survive the round trip as
// RFC 3339 strings.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in Redis: %w", key, err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, key string, dest interface{}, errNotFound error) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s", errNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// SaveDefinition stores a definition keyed by name and version.
func (s *RedisStore) SaveDefinition(ctx context.Context, def *types.WorkflowDefinition) error {
	return s.save(ctx, definitionPrefix+definitionKey(def.Name, def.Version), def)
}

// GetDefinition retrieves a definition by name and version.
func (s *RedisStore) GetDefinition(ctx context.Context, name, version string) (*types.WorkflowDefinition, error) {
	var def types.WorkflowDefinition
	if err := s.load(ctx, definitionPrefix+definitionKey(name, version), &def, ErrDefinitionNotFound); err != nil {
		return nil, err
	}
	return &def, nil
}

// SaveEventLog stores the full event log of a run.
func (s *RedisStore) SaveEventLog(ctx context.Context, runID string, events []types.Event) error {
	return s.save(ctx, eventLogPrefix+runID, events)
}

// GetEventLog retrieves the event log of a run.
func (s *RedisStore) GetEventLog(ctx context.Context, runID string) ([]types.Event, error) {
	var events []types.Event
	if err := s.load(ctx, eventLogPrefix+runID, &events, ErrEventLogNotFound); err != nil {
		return nil, err
	}
	return events, nil
}
