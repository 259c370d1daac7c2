package conditions

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotNumeric = errors.New("value is not numeric")
	ErrBadRange   = errors.New("between expects a [min, max] pair")
)

// Match applies op to a resolved value. The error carries a diagnostic when
// the result is false because of malformed input; it never aborts a caller.
// now anchors the relative date operators.
func Match(actual Value, op Operator, expected Value, now time.Time) (bool, error) {
	switch op {
	case OpIsEmpty:
		return actual.IsEmpty(), nil
	case OpIsNotEmpty:
		return !actual.IsEmpty(), nil
	}

	if !op.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	if actual.Kind() == KindAbsent || actual.Kind() == KindNull {
		return false, nil
	}
	if op.NeedsValue() && expected.IsAbsent() {
		return false, fmt.Errorf("%s: %w", op, ErrMissingValue)
	}

	switch op.Class() {
	case ClassText:
		return matchText(actual, op, expected), nil
	case ClassNumeric:
		return matchNumeric(actual, op, expected)
	case ClassList:
		return matchList(actual, op, expected), nil
	case ClassDate:
		return CheckDate(actual, op, expected, now)
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

func fold(v Value) string {
	return strings.ToLower(v.Text())
}

func matchText(actual Value, op Operator, expected Value) bool {
	a, e := fold(actual), fold(expected)

	switch op {
	case OpEquals:
		return a == e
	case OpNotEquals:
		return a != e
	case OpContains:
		return strings.Contains(a, e)
	case OpNotContains:
		return !strings.Contains(a, e)
	case OpStartsWith:
		return strings.HasPrefix(a, e)
	case OpEndsWith:
		return strings.HasSuffix(a, e)
	}
	return false
}

func matchNumeric(actual Value, op Operator, expected Value) (bool, error) {
	a, ok := actual.Float()
	if !ok {
		return false, fmt.Errorf("%s: %w: actual %s", op, ErrNotNumeric, actual)
	}

	if op == OpBetween {
		lo, hi, err := bounds(expected)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return lo <= a && a <= hi, nil
	}

	e, ok := expected.Float()
	if !ok {
		return false, fmt.Errorf("%s: %w: expected %s", op, ErrNotNumeric, expected)
	}

	switch op {
	case OpGreaterThan:
		return a > e, nil
	case OpLessThan:
		return a < e, nil
	case OpGreaterOrEqual:
		return a >= e, nil
	case OpLessOrEqual:
		return a <= e, nil
	}
	return false, nil
}

func bounds(expected Value) (float64, float64, error) {
	items := expected.Items()
	if expected.Kind() != KindList || len(items) != 2 {
		return 0, 0, fmt.Errorf("%w: got %s", ErrBadRange, expected)
	}
	lo, okLo := items[0].Float()
	hi, okHi := items[1].Float()
	if !okLo || !okHi {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotNumeric, expected)
	}
	return lo, hi, nil
}

// matchList compares case-insensitively; a scalar expected value is a
// one-element list.
func matchList(actual Value, op Operator, expected Value) bool {
	candidates := []Value{expected}
	if expected.Kind() == KindList {
		candidates = expected.Items()
	}

	a := fold(actual)
	found := false
	for _, c := range candidates {
		if fold(c) == a {
			found = true
			break
		}
	}

	if op == OpNotInList {
		return !found
	}
	return found
}
