package storage

import (
	"context"
	"fmt"

	"github.com/procflow/procflow/types"
	"github.com/procflow/procflow/workflow"
)

// LoadRun rebuilds a live run from storage: the definition and the recorded
// event log are fetched and replayed through the engine. The returned run is
// positioned exactly where the original left off and accepts further events.
func LoadRun(ctx context.Context, s Store, eng *workflow.Engine, name, version, runID string) (*types.WorkflowRun, error) {
	def, err := s.GetDefinition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	log, err := s.GetEventLog(ctx, runID)
	if err != nil {
		return nil, err
	}

	run, err := eng.Replay(def, log, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay run %q: %w", runID, err)
	}
	return run, nil
}
