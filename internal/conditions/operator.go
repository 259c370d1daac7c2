package conditions

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUnknownCombinator = errors.New("unknown combinator")
)

// Operator is the closed set of comparisons a leaf can apply.
type Operator string

const (
	OpIsEmpty    Operator = "is_empty"
	OpIsNotEmpty Operator = "is_not_empty"

	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"

	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpBetween        Operator = "between"

	OpInList    Operator = "in_list"
	OpNotInList Operator = "not_in_list"

	OpAfter     Operator = "after"
	OpBefore    Operator = "before"
	OpToday     Operator = "today"
	OpYesterday Operator = "yesterday"
	OpThisWeek  Operator = "this_week"
	OpLastWeek  Operator = "last_week"
	OpThisMonth Operator = "this_month"
	OpLastMonth Operator = "last_month"
	OpLastNDays Operator = "last_n_days"
)

// Class groups operators by the coercion they apply.
type Class uint8

const (
	ClassPresence Class = iota + 1
	ClassText
	ClassNumeric
	ClassList
	ClassDate
)

var catalogue = []struct {
	op    Operator
	class Class
}{
	{OpIsEmpty, ClassPresence},
	{OpIsNotEmpty, ClassPresence},
	{OpEquals, ClassText},
	{OpNotEquals, ClassText},
	{OpContains, ClassText},
	{OpNotContains, ClassText},
	{OpStartsWith, ClassText},
	{OpEndsWith, ClassText},
	{OpGreaterThan, ClassNumeric},
	{OpLessThan, ClassNumeric},
	{OpGreaterOrEqual, ClassNumeric},
	{OpLessOrEqual, ClassNumeric},
	{OpBetween, ClassNumeric},
	{OpInList, ClassList},
	{OpNotInList, ClassList},
	{OpAfter, ClassDate},
	{OpBefore, ClassDate},
	{OpToday, ClassDate},
	{OpYesterday, ClassDate},
	{OpThisWeek, ClassDate},
	{OpLastWeek, ClassDate},
	{OpThisMonth, ClassDate},
	{OpLastMonth, ClassDate},
	{OpLastNDays, ClassDate},
}

var classes = func() map[Operator]Class {
	m := make(map[Operator]Class, len(catalogue))
	for _, entry := range catalogue {
		m[entry.op] = entry.class
	}
	return m
}()

// Operators lists every operator in catalogue order.
func Operators() []Operator {
	out := make([]Operator, len(catalogue))
	for i, entry := range catalogue {
		out[i] = entry.op
	}
	return out
}

// OperatorsOf lists the operators of the given classes in catalogue order.
func OperatorsOf(cs ...Class) []Operator {
	var out []Operator
	for _, entry := range catalogue {
		for _, c := range cs {
			if entry.class == c {
				out = append(out, entry.op)
				break
			}
		}
	}
	return out
}

func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperator, s)
	}
	return op, nil
}

func (o Operator) Valid() bool {
	_, ok := classes[o]
	return ok
}

func (o Operator) Class() Class {
	return classes[o]
}

// NeedsValue reports whether the operator reads the leaf's expected value.
func (o Operator) NeedsValue() bool {
	switch o.Class() {
	case ClassPresence:
		return false
	case ClassDate:
		return o == OpAfter || o == OpBefore || o == OpLastNDays
	}
	return o.Valid()
}

func (o *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("operator must be a string: %w", err)
	}
	op, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Combinator joins the leaves of a tree.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

func (c Combinator) Valid() bool {
	return c == And || c == Or
}

func (c *Combinator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("type must be a string: %w", err)
	}
	if !Combinator(s).Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCombinator, s)
	}
	*c = Combinator(s)
	return nil
}
