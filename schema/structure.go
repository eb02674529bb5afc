package schema

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/procflow/procflow/rules"
	"github.com/procflow/procflow/types"
)

// DefinitionError reports a failed structural validation with every
// violation collected, not just the first.
type DefinitionError struct {
	Violations []string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("workflow structural validation failed:\n  - %s",
		strings.Join(e.Violations, "\n  - "))
}

// ValidateStructure checks a parsed definition for graph well-formedness:
// exactly one start node, at least one end node, resolvable transition
// references, full reachability from start, at least one outgoing transition
// on every non-end node, and compilable expression guards. Semantic
// completeness of decision conditions is deliberately not checked here; it
// depends on run-time context shape and surfaces at traversal time.
func ValidateStructure(def *types.WorkflowDefinition) error {
	var violations []string

	if _, err := semver.StrictNewVersion(def.Version); err != nil {
		violations = append(violations, fmt.Sprintf("version %q is not a semantic version: %v", def.Version, err))
	}

	nodeIDs := make(map[string]types.Node, len(def.Nodes))
	var startIDs, endIDs []string
	for _, n := range def.Nodes {
		if _, dup := nodeIDs[n.ID]; dup {
			violations = append(violations, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		nodeIDs[n.ID] = n
		if !n.Type.Valid() {
			violations = append(violations, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
		switch n.Type {
		case types.NodeStart:
			startIDs = append(startIDs, n.ID)
		case types.NodeEnd:
			endIDs = append(endIDs, n.ID)
		}
	}

	if len(startIDs) != 1 {
		violations = append(violations,
			fmt.Sprintf("workflow must have exactly one start node; found %d", len(startIDs)))
	}
	if len(endIDs) == 0 {
		violations = append(violations, "workflow must have at least one end node")
	}

	exprEval := rules.NewExprEvaluator()
	endSet := make(map[string]bool, len(endIDs))
	for _, id := range endIDs {
		endSet[id] = true
	}
	for i, t := range def.Transitions {
		if _, ok := nodeIDs[t.FromNode]; !ok {
			violations = append(violations, fmt.Sprintf("transition references unknown from_node %q", t.FromNode))
		}
		if _, ok := nodeIDs[t.ToNode]; !ok {
			violations = append(violations, fmt.Sprintf("transition references unknown to_node %q", t.ToNode))
		}
		if len(startIDs) == 1 && t.ToNode == startIDs[0] {
			violations = append(violations, fmt.Sprintf("start node %q must not have incoming transitions", t.ToNode))
		}
		if endSet[t.FromNode] {
			violations = append(violations, fmt.Sprintf("end node %q must not have outgoing transitions", t.FromNode))
		}
		if t.Condition != nil && t.When != "" {
			violations = append(violations,
				fmt.Sprintf("transition %q -> %q carries both a condition and a when guard", t.FromNode, t.ToNode))
		}
		if t.Condition != nil && !t.Condition.Operator.Valid() {
			violations = append(violations,
				fmt.Sprintf("transition %q -> %q uses unknown operator %q", t.FromNode, t.ToNode, t.Condition.Operator))
		}
		if t.When != "" {
			if err := exprEval.Compile(t.When); err != nil {
				violations = append(violations,
					fmt.Sprintf("transition %d (%q -> %q): %v", i, t.FromNode, t.ToNode, err))
			}
		}
	}

	for _, n := range def.Nodes {
		if n.Type != types.NodeEnd && len(outgoingOf(def, n.ID)) == 0 {
			violations = append(violations, fmt.Sprintf("node %q has no outgoing transitions", n.ID))
		}
	}

	if len(startIDs) == 1 {
		for _, id := range unreachableFrom(def, startIDs[0], nodeIDs) {
			violations = append(violations, fmt.Sprintf("node %q is not reachable from the start node", id))
		}
	}

	if len(violations) > 0 {
		return &DefinitionError{Violations: violations}
	}
	return nil
}

// outgoingOf scans the raw transition list instead of the definition's lazy
// adjacency map so that validation never caches indexes for a graph that may
// still be rejected.
func outgoingOf(def *types.WorkflowDefinition, nodeID string) []types.Transition {
	var out []types.Transition
	for _, t := range def.Transitions {
		if t.FromNode == nodeID {
			out = append(out, t)
		}
	}
	return out
}

// unreachableFrom returns, in declaration order, the nodes a forward
// traversal from start never visits.
func unreachableFrom(def *types.WorkflowDefinition, startID string, nodeIDs map[string]types.Node) []string {
	visited := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, t := range outgoingOf(def, current) {
			if _, ok := nodeIDs[t.ToNode]; !ok {
				continue // dangling reference, reported separately
			}
			if !visited[t.ToNode] {
				visited[t.ToNode] = true
				queue = append(queue, t.ToNode)
			}
		}
	}

	var unreachable []string
	for _, n := range def.Nodes {
		if !visited[n.ID] {
			unreachable = append(unreachable, n.ID)
		}
	}
	return unreachable
}
