package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEvaluator evaluates free-form transition guards written in the
// expr-lang expression language. Compiled programs are cached per expression
// since definitions are shared across many runs.
//
// Guards must be pure functions of the run context; the evaluator exposes no
// clock, randomness or I/O, so a guard that compiles is safe to replay.
type ExprEvaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewExprEvaluator creates an ExprEvaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Compile compiles an expression and caches the program. Called during
// structural validation so malformed guards surface before any run exists.
func (e *ExprEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs an expression against the context. The result must be a
// boolean; anything else is an evaluation failure.
func (e *ExprEvaluator) Evaluate(expression string, context map[string]interface{}) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}

	result, err := expr.Run(program, context)
	if err != nil {
		return false, fmt.Errorf("%w: expression %q: %v", ErrEvaluation, expression, err)
	}

	boolResult, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression %q evaluated to %T, want bool",
			ErrEvaluation, expression, result)
	}
	return boolResult, nil
}

func (e *ExprEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if program, ok = e.cache[expression]; ok {
		return program, nil
	}
	// Compiled without a typed environment so one program serves every
	// context shape; unknown identifiers fail at run time instead.
	program, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	e.cache[expression] = program
	return program, nil
}
