// Package workflow executes validated workflow definitions.
//
// The engine is a stateless set of operations over explicit definition and
// run values. Routing depends only on the accumulated run context, never on
// wall-clock time, randomness or external state, so any run can be rebuilt
// bit-identically from its recorded event log alone.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/songzhibin97/gkit/generator"

	"github.com/procflow/procflow/events"
	"github.com/procflow/procflow/rules"
	"github.com/procflow/procflow/types"
)

// Standard error definitions
var (
	ErrWorkflowCompleted = errors.New("workflow run already completed")
	ErrDuplicateEvent    = errors.New("duplicate idempotency key")
	ErrInvalidEvent      = errors.New("event not valid for current node")
	ErrTransition        = errors.New("no valid transition")
	ErrNodeNotFound      = errors.New("node not found")
	ErrEmptyEventLog     = errors.New("event log is empty")
)

// Engine executes workflow runs. The zero configuration uses the real clock
// and random UUIDs for generated identifiers; both only ever appear in
// recorded events and never influence routing.
//
// Engines hold no per-run state and may be shared freely. A single run value
// must not be mutated concurrently; callers serialize access per run id.
type Engine struct {
	now      func() time.Time
	gen      generator.Generator
	bus      *events.Bus
	exprEval *rules.ExprEvaluator
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the timestamp source for recorded events.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets a generator for run ids, e.g. a gkit snowflake.
// Generated ids are formatted as "run-<id>".
func WithIDGenerator(gen generator.Generator) Option {
	return func(e *Engine) {
		e.gen = gen
	}
}

// WithBus attaches a notification bus. Lifecycle notifications are published
// after successful mutations only; replay publishes nothing.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// NewEngine creates an Engine.
func NewEngine(options ...Option) *Engine {
	e := &Engine{
		now:      time.Now,
		exprEval: rules.NewExprEvaluator(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Start creates a new run for a validated definition, records the
// workflow_started event and auto-advances through the start node's single
// outgoing transition. If that transition leads directly to an end node the
// run completes immediately.
//
// initialContext may be nil; runID is generated when empty.
func (e *Engine) Start(def *types.WorkflowDefinition, initialContext map[string]interface{}, runID string) (*types.WorkflowRun, error) {
	if def == nil {
		return nil, errors.New("definition cannot be nil")
	}
	startNode, ok := def.StartNode()
	if !ok {
		return nil, fmt.Errorf("%w: definition %q has no start node", ErrNodeNotFound, def.Name)
	}

	rid := runID
	if rid == "" {
		var err error
		if rid, err = e.newRunID(); err != nil {
			return nil, err
		}
	}

	startEvent := types.Event{
		EventType:      types.EventWorkflowStarted,
		Timestamp:      e.now().UTC(),
		NodeID:         startNode.ID,
		Payload:        map[string]interface{}{"context": copyMap(initialContext)},
		IdempotencyKey: uuid.NewString(),
	}

	run, err := e.startRun(def, initialContext, rid, startNode, startEvent)
	if err != nil {
		return nil, err
	}

	e.notify(run, events.NotifyRunStarted, map[string]interface{}{
		"workflow": def.Name,
		"node":     run.CurrentNodeID,
	})
	if run.Status == types.StatusCompleted {
		e.notify(run, events.NotifyRunCompleted, map[string]interface{}{"node": run.CurrentNodeID})
	}
	return run, nil
}

// SubmitEvent applies one externally submitted event to a run: it verifies
// the run is still running, dedupes by idempotency key, checks the event
// type against the current node, merges the payload into the context
// (shallow, last write wins), resolves the next node, then records the event
// and moves. A failed call leaves the run completely unchanged.
//
// A fresh idempotency key is generated when none is supplied, so every
// recorded event carries one. Returns the mutated run.
func (e *Engine) SubmitEvent(run *types.WorkflowRun, eventType types.EventType, payload map[string]interface{}, idempotencyKey string) (*types.WorkflowRun, error) {
	if run == nil {
		return nil, errors.New("run cannot be nil")
	}
	if run.Status != types.StatusRunning {
		return nil, fmt.Errorf("%w: run %q is %s", ErrWorkflowCompleted, run.RunID, run.Status)
	}

	key := idempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	ev := types.Event{
		EventType:      eventType,
		Timestamp:      e.now().UTC(),
		NodeID:         run.CurrentNodeID,
		Payload:        copyMap(payload),
		IdempotencyKey: key,
	}

	if err := e.apply(run, ev); err != nil {
		return nil, err
	}

	e.notify(run, events.NotifyEventApplied, map[string]interface{}{
		"event_type": string(eventType),
		"node":       run.CurrentNodeID,
	})
	if run.Status == types.StatusCompleted {
		e.notify(run, events.NotifyRunCompleted, map[string]interface{}{"node": run.CurrentNodeID})
	}
	return run, nil
}

// Replay rebuilds a run purely from a previously recorded event log by
// re-driving the same application path as Start and SubmitEvent with each
// event replayed verbatim: recorded timestamps, payloads and idempotency
// keys are reused, never regenerated. Given the same definition and event
// sequence the result is identical to the run that produced the log,
// regardless of how much real time has passed.
func (e *Engine) Replay(def *types.WorkflowDefinition, log []types.Event, runID string) (*types.WorkflowRun, error) {
	if def == nil {
		return nil, errors.New("definition cannot be nil")
	}
	if len(log) == 0 {
		return nil, ErrEmptyEventLog
	}

	first := log[0]
	if first.EventType != types.EventWorkflowStarted {
		return nil, fmt.Errorf("%w: event log must start with %s, got %s",
			ErrInvalidEvent, types.EventWorkflowStarted, first.EventType)
	}
	startNode, ok := def.StartNode()
	if !ok {
		return nil, fmt.Errorf("%w: definition %q has no start node", ErrNodeNotFound, def.Name)
	}

	rid := runID
	if rid == "" {
		var err error
		if rid, err = e.newRunID(); err != nil {
			return nil, err
		}
	}

	initialContext, _ := first.Payload["context"].(map[string]interface{})
	run, err := e.startRun(def, initialContext, rid, startNode, first)
	if err != nil {
		return nil, err
	}

	for i, ev := range log[1:] {
		if run.Status != types.StatusRunning {
			break
		}
		if err := e.apply(run, ev); err != nil {
			return nil, fmt.Errorf("replay event %d: %w", i+1, err)
		}
	}
	return run, nil
}

// startRun positions a fresh run at the start node, records the given start
// event and auto-advances. Shared by Start and Replay so both drive the
// exact same algorithm.
func (e *Engine) startRun(def *types.WorkflowDefinition, initialContext map[string]interface{}, runID string, startNode types.Node, startEvent types.Event) (*types.WorkflowRun, error) {
	run := types.NewRun(runID, def, startNode.ID, initialContext)

	next, err := e.resolveNext(def, startNode, run.Context)
	if err != nil {
		return nil, err
	}

	run.RecordEvent(startEvent)
	run.CurrentNodeID = next
	if node, ok := def.Node(next); ok && node.Type == types.NodeEnd {
		run.Status = types.StatusCompleted
	}
	return run, nil
}

// apply performs the checked, atomic application of one event to a run.
// Nothing is mutated until the next node has been resolved successfully.
func (e *Engine) apply(run *types.WorkflowRun, ev types.Event) error {
	if ev.IdempotencyKey != "" && run.HasSeenKey(ev.IdempotencyKey) {
		return fmt.Errorf("%w: %q already processed in run %q", ErrDuplicateEvent, ev.IdempotencyKey, run.RunID)
	}

	node, ok := run.Definition.Node(run.CurrentNodeID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, run.CurrentNodeID)
	}
	if ev.NodeID != node.ID {
		return fmt.Errorf("%w: event recorded against node %q but run is at %q",
			ErrInvalidEvent, ev.NodeID, node.ID)
	}

	expected, ok := expectedEvent(node.Type)
	if !ok || ev.EventType != expected {
		want := "none"
		if ok {
			want = string(expected)
		}
		return fmt.Errorf("%w: node %q (type=%s) expects event %s, got %s",
			ErrInvalidEvent, node.ID, node.Type, want, ev.EventType)
	}

	merged := copyMap(run.Context)
	for k, v := range ev.Payload {
		merged[k] = v
	}

	next, err := e.resolveNext(run.Definition, node, merged)
	if err != nil {
		return err
	}

	run.RecordEvent(ev)
	run.Context = merged
	run.CurrentNodeID = next
	if nextNode, ok := run.Definition.Node(next); ok && nextNode.Type == types.NodeEnd {
		run.Status = types.StatusCompleted
	}
	return nil
}

// expectedEvent maps a node type to the single event type that advances it.
func expectedEvent(t types.NodeType) (types.EventType, bool) {
	switch t {
	case types.NodeTask:
		return types.EventTaskCompleted, true
	case types.NodeApproval:
		return types.EventApprovalSubmitted, true
	case types.NodeDecision:
		return types.EventDecisionMade, true
	default:
		return "", false
	}
}

// resolveNext picks the target node for one move out of the given node.
// Dispatch is an exhaustive switch over the closed node type set.
func (e *Engine) resolveNext(def *types.WorkflowDefinition, node types.Node, context map[string]interface{}) (string, error) {
	outgoing := def.Outgoing(node.ID)

	switch node.Type {
	case types.NodeStart:
		if len(outgoing) != 1 {
			return "", fmt.Errorf("%w: start node %q must have exactly one outgoing transition, found %d",
				ErrTransition, node.ID, len(outgoing))
		}
		fire, err := e.canFire(outgoing[0], context)
		if err != nil {
			return "", err
		}
		if !fire {
			return "", fmt.Errorf("%w: start transition of %q did not fire", ErrTransition, node.ID)
		}
		return outgoing[0].ToNode, nil

	case types.NodeTask, types.NodeApproval:
		// Conditional transitions on task/approval nodes are a
		// configuration defect; only the sole unconditional one routes.
		var unconditional []types.Transition
		for _, t := range outgoing {
			if !t.Conditional() {
				unconditional = append(unconditional, t)
			}
		}
		if len(unconditional) != 1 {
			return "", fmt.Errorf("%w: node %q (type=%s) expects exactly one unconditional outgoing transition, found %d",
				ErrTransition, node.ID, node.Type, len(unconditional))
		}
		return unconditional[0].ToNode, nil

	case types.NodeDecision:
		if len(outgoing) == 0 {
			return "", fmt.Errorf("%w: no outgoing transitions from node %q", ErrTransition, node.ID)
		}
		// First match wins, in declaration order; an unconditional
		// transition fires trivially.
		for _, t := range outgoing {
			fire, err := e.canFire(t, context)
			if err != nil {
				return "", err
			}
			if fire {
				return t.ToNode, nil
			}
		}
		return "", fmt.Errorf("%w: no transition condition matched for node %q", ErrTransition, node.ID)

	case types.NodeEnd:
		return "", fmt.Errorf("%w: end node %q has no outgoing transitions", ErrTransition, node.ID)

	default:
		return "", fmt.Errorf("%w: node %q has unknown type %q", ErrTransition, node.ID, node.Type)
	}
}

// canFire evaluates a transition's guard against the context. Unconditional
// transitions always fire.
func (e *Engine) canFire(t types.Transition, context map[string]interface{}) (bool, error) {
	switch {
	case t.Condition != nil:
		return rules.Evaluate(context, *t.Condition)
	case t.When != "":
		return e.exprEval.Evaluate(t.When, context)
	default:
		return true, nil
	}
}

func (e *Engine) newRunID() (string, error) {
	if e.gen != nil {
		id, err := e.gen.NextID()
		if err != nil {
			return "", fmt.Errorf("failed to generate run id: %w", err)
		}
		return fmt.Sprintf("run-%d", id), nil
	}
	return uuid.NewString(), nil
}

func (e *Engine) notify(run *types.WorkflowRun, notifyType string, data map[string]interface{}) {
	if e.bus == nil {
		return
	}
	// Best effort: a full or stopped bus never fails an engine operation.
	_ = e.bus.Publish(context.Background(), events.Notification{
		Type:  notifyType,
		RunID: run.RunID,
		Data:  data,
	})
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
