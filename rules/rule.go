package rules

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/procflow/procflow/types"
)

// ErrEvaluation is wrapped by every condition evaluation failure: a missing
// context field, an unordered comparison, or an operand of the wrong shape.
// The engine propagates these rather than treating them as false.
var ErrEvaluation = errors.New("condition evaluation failed")

// Evaluate applies a condition to a run context and returns whether it holds.
// It is a pure function: the context is never mutated and the outcome depends
// only on the arguments, which is what keeps replay deterministic.
//
// Semantics per operator:
//
//	eq/neq    value equality (numeric kinds compare by value)
//	gt/gte/
//	lt/lte    ordered comparison over numbers or strings
//	in/not_in condition value must be a sequence; membership of the field
//	contains  field value must be a sequence, string or map; membership of
//	          the condition value
func Evaluate(context map[string]interface{}, cond types.Condition) (bool, error) {
	actual, ok := context[cond.Field]
	if !ok {
		return false, fmt.Errorf("%w: field %q not present in context", ErrEvaluation, cond.Field)
	}

	switch cond.Operator {
	case types.OpEq:
		return looseEqual(actual, cond.Value), nil
	case types.OpNeq:
		return !looseEqual(actual, cond.Value), nil
	case types.OpGt, types.OpGte, types.OpLt, types.OpLte:
		c, err := compare(actual, cond.Value)
		if err != nil {
			return false, fmt.Errorf("%w: field %q: %v", ErrEvaluation, cond.Field, err)
		}
		switch cond.Operator {
		case types.OpGt:
			return c > 0, nil
		case types.OpGte:
			return c >= 0, nil
		case types.OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case types.OpIn, types.OpNotIn:
		member, err := contains(cond.Value, actual)
		if err != nil {
			return false, fmt.Errorf("%w: field %q: operator %s needs a sequence value: %v",
				ErrEvaluation, cond.Field, cond.Operator, err)
		}
		if cond.Operator == types.OpIn {
			return member, nil
		}
		return !member, nil
	case types.OpContains:
		member, err := contains(actual, cond.Value)
		if err != nil {
			return false, fmt.Errorf("%w: field %q: operator contains needs a collection in the context: %v",
				ErrEvaluation, cond.Field, err)
		}
		return member, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrEvaluation, cond.Operator)
	}
}

// looseEqual compares two values, treating all numeric kinds as one domain
// so that a live int payload and its JSON round-trip (float64) agree.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values, returning <0, 0 or >0. Numbers order
// numerically, strings lexicographically; anything else is not ordered.
func compare(a, b interface{}) (int, error) {
	if af, ok := toFloat(a); ok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if as, ok := a.(string); ok {
		bs, bok := b.(string)
		if !bok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(as, bs), nil
	}
	return 0, fmt.Errorf("values of type %T are not ordered", a)
}

// contains reports whether collection holds item. Slices and arrays test
// element membership, strings test substring inclusion, maps test key
// presence.
func contains(collection, item interface{}) (bool, error) {
	switch c := collection.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, fmt.Errorf("cannot search for %T in a string", item)
		}
		return strings.Contains(c, s), nil
	}

	rv := reflect.ValueOf(collection)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(rv.Index(i).Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			if looseEqual(key.Interface(), item) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%T is not a collection", collection)
	}
}

// toFloat widens any numeric kind to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
