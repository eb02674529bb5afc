package types

import (
	"sync"
	"time"
)

// NodeType classifies the behavior of a node. The set is closed; the engine
// dispatches on it with exhaustive switches.
type NodeType string

const (
	NodeStart    NodeType = "start"
	NodeTask     NodeType = "task"
	NodeApproval NodeType = "approval"
	NodeDecision NodeType = "decision"
	NodeEnd      NodeType = "end"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeStart, NodeTask, NodeApproval, NodeDecision, NodeEnd:
		return true
	}
	return false
}

// EventType identifies what kind of occurrence an event records.
// EventWorkflowStarted is written by the engine when a run starts and cannot
// be submitted externally.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventTaskCompleted     EventType = "task_completed"
	EventApprovalSubmitted EventType = "approval_submitted"
	EventDecisionMade      EventType = "decision_made"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
)

// Operator is a comparison operator usable in a transition condition.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpNotIn    Operator = "not_in"
	OpContains Operator = "contains"
)

// Operators lists every supported operator in a stable order.
func Operators() []Operator {
	return []Operator{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains}
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	for _, known := range Operators() {
		if op == known {
			return true
		}
	}
	return false
}

// Node is a labeled point in the workflow graph.
type Node struct {
	ID     string                 `json:"id"`
	Type   NodeType               `json:"type"`
	Label  string                 `json:"label,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Condition compares one context field against a literal value.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// Transition is a directed edge between two nodes. A transition may be
// guarded either by a structured Condition or by a When expression
// (expr-lang, must evaluate to a boolean over the run context), never both.
// With neither set the transition is unconditional.
type Transition struct {
	FromNode  string     `json:"from_node"`
	ToNode    string     `json:"to_node"`
	Condition *Condition `json:"condition,omitempty"`
	When      string     `json:"when,omitempty"`
}

// Conditional reports whether the transition carries any guard.
func (t Transition) Conditional() bool {
	return t.Condition != nil || t.When != ""
}

// WorkflowDefinition is an immutable workflow graph. Once validated it is
// shared read-only across runs; the node index and adjacency map are derived
// lazily and guarded by sync.Once so concurrent runs may share one value.
type WorkflowDefinition struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Description string       `json:"description,omitempty"`
	Nodes       []Node       `json:"nodes"`
	Transitions []Transition `json:"transitions"`

	once      sync.Once
	nodeIndex map[string]Node
	adjacency map[string][]Transition
}

func (d *WorkflowDefinition) index() {
	d.once.Do(func() {
		d.nodeIndex = make(map[string]Node, len(d.Nodes))
		for _, n := range d.Nodes {
			d.nodeIndex[n.ID] = n
		}
		d.adjacency = make(map[string][]Transition)
		for _, t := range d.Transitions {
			d.adjacency[t.FromNode] = append(d.adjacency[t.FromNode], t)
		}
	})
}

// Node returns the node with the given id.
func (d *WorkflowDefinition) Node(id string) (Node, bool) {
	d.index()
	n, ok := d.nodeIndex[id]
	return n, ok
}

// Outgoing returns the transitions leaving the given node in declaration
// order. Declaration order is significant: decision routing is first-match.
func (d *WorkflowDefinition) Outgoing(id string) []Transition {
	d.index()
	return d.adjacency[id]
}

// StartNode returns the single start node.
func (d *WorkflowDefinition) StartNode() (Node, bool) {
	for _, n := range d.Nodes {
		if n.Type == NodeStart {
			return n, true
		}
	}
	return Node{}, false
}

// EndNodes returns all end nodes in declaration order.
func (d *WorkflowDefinition) EndNodes() []Node {
	var ends []Node
	for _, n := range d.Nodes {
		if n.Type == NodeEnd {
			ends = append(ends, n)
		}
	}
	return ends
}

// Event is one immutable entry in a run's event log. The shape matches the
// external log representation, so a log can be marshaled to JSON, stored by
// the caller and replayed later.
type Event struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	NodeID         string                 `json:"node_id"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
}

// WorkflowRun is the mutable state of one executing workflow instance.
// It is not safe for concurrent mutation; callers serialize access per run.
type WorkflowRun struct {
	RunID         string                 `json:"run_id"`
	Definition    *WorkflowDefinition    `json:"-"`
	CurrentNodeID string                 `json:"current_node_id"`
	Context       map[string]interface{} `json:"context"`
	Status        RunStatus              `json:"status"`
	Events        []Event                `json:"events"`

	seenKeys map[string]struct{}
}

// NewRun creates a running instance positioned at the given node with its
// own copy of the initial context.
func NewRun(runID string, def *WorkflowDefinition, nodeID string, context map[string]interface{}) *WorkflowRun {
	ctx := make(map[string]interface{}, len(context))
	for k, v := range context {
		ctx[k] = v
	}
	return &WorkflowRun{
		RunID:         runID,
		Definition:    def,
		CurrentNodeID: nodeID,
		Context:       ctx,
		Status:        StatusRunning,
		seenKeys:      make(map[string]struct{}),
	}
}

// RecordEvent appends an event to the log and registers its idempotency key.
// The log is append-only; recorded events are never rewritten.
func (r *WorkflowRun) RecordEvent(ev Event) {
	r.Events = append(r.Events, ev)
	if ev.IdempotencyKey != "" {
		if r.seenKeys == nil {
			r.seenKeys = make(map[string]struct{})
		}
		r.seenKeys[ev.IdempotencyKey] = struct{}{}
	}
}

// HasSeenKey reports whether an idempotency key was already consumed by this
// run. Keys are remembered for the lifetime of the run, including replays.
func (r *WorkflowRun) HasSeenKey(key string) bool {
	_, ok := r.seenKeys[key]
	return ok
}
