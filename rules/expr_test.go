package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExprEvaluator tests guard evaluation through the expression language.
func TestExprEvaluator(t *testing.T) {
	evaluator := NewExprEvaluator()

	tests := []struct {
		name       string
		expression string
		context    map[string]interface{}
		wantResult bool
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "valid true expression",
			expression: "amount > 1000",
			context:    map[string]interface{}{"amount": 1500},
			wantResult: true,
		},
		{
			name:       "valid false expression",
			expression: "amount > 1000",
			context:    map[string]interface{}{"amount": 500},
			wantResult: false,
		},
		{
			name:       "compound expression",
			expression: "amount <= 1000 && approved",
			context:    map[string]interface{}{"amount": 500, "approved": true},
			wantResult: true,
		},
		{
			name:       "non-boolean result",
			expression: "amount + 5",
			context:    map[string]interface{}{"amount": 25},
			wantErr:    true,
			errMsg:     "want bool",
		},
		{
			name:       "invalid syntax",
			expression: "amount >>> 18",
			context:    map[string]interface{}{"amount": 25},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(tt.expression, tt.context)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEvaluation)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
		})
	}
}

// TestExprEvaluatorCompile checks that malformed guards surface at
// validation time, before any run exists.
func TestExprEvaluatorCompile(t *testing.T) {
	evaluator := NewExprEvaluator()

	assert.NoError(t, evaluator.Compile("amount > 1000"))
	assert.Error(t, evaluator.Compile("amount >"))

	// Compiled programs are cached and reused across contexts.
	ok, err := evaluator.Evaluate("amount > 1000", map[string]interface{}{"amount": 2000})
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = evaluator.Evaluate("amount > 1000", map[string]interface{}{"amount": 10})
	assert.NoError(t, err)
	assert.False(t, ok)
}
