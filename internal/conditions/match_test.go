package conditions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refNow = time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		actual   Value
		op       Operator
		expected Value
		want     bool
		wantErr  error
	}{
		{"is_empty absent", Absent(), OpIsEmpty, Absent(), true, nil},
		{"is_empty empty string", String(""), OpIsEmpty, Absent(), true, nil},
		{"is_empty empty list", List(), OpIsEmpty, Absent(), true, nil},
		{"is_empty zero", Number(0), OpIsEmpty, Absent(), false, nil},
		{"is_not_empty value", String("x"), OpIsNotEmpty, Absent(), true, nil},
		{"is_not_empty absent", Absent(), OpIsNotEmpty, Absent(), false, nil},

		{"equals case-insensitive", String("Won"), OpEquals, String("WON"), true, nil},
		{"equals number vs string", Number(142), OpEquals, String("142"), true, nil},
		{"equals absent vs empty", Absent(), OpEquals, String(""), false, nil},
		{"equals null", Null(), OpEquals, String(""), false, nil},
		{"not_equals", String("a"), OpNotEquals, String("b"), true, nil},
		{"not_equals absent", Absent(), OpNotEquals, String("b"), false, nil},
		{"contains", String("Big Deal Inc"), OpContains, String("deal"), true, nil},
		{"not_contains", String("Big Deal Inc"), OpNotContains, String("small"), true, nil},
		{"starts_with", String("Website order"), OpStartsWith, String("WEB"), true, nil},
		{"ends_with", String("Website order"), OpEndsWith, String("Order"), true, nil},
		{"ends_with miss", String("Website order"), OpEndsWith, String("web"), false, nil},
		{"text op without value", String("x"), OpContains, Absent(), false, ErrMissingValue},

		{"greater_than", Number(150), OpGreaterThan, Number(100), true, nil},
		{"greater_than string input", String("150.5"), OpGreaterThan, String("150"), true, nil},
		{"greater_than not numeric", String("N/A"), OpGreaterThan, Number(100), false, ErrNotNumeric},
		{"less_than", Number(5), OpLessThan, Number(10), true, nil},
		{"greater_or_equal edge", Number(10), OpGreaterOrEqual, Number(10), true, nil},
		{"less_or_equal edge", Number(10), OpLessOrEqual, Number(10), true, nil},
		{"less_or_equal bad expected", Number(10), OpLessOrEqual, String("ten"), false, ErrNotNumeric},

		{"between inside", Number(15), OpBetween, List(Number(10), Number(20)), true, nil},
		{"between lower bound", Number(10), OpBetween, List(Number(10), Number(20)), true, nil},
		{"between upper bound", Number(20), OpBetween, List(Number(10), Number(20)), true, nil},
		{"between below", Number(9), OpBetween, List(Number(10), Number(20)), false, nil},
		{"between above", Number(21), OpBetween, List(Number(10), Number(20)), false, nil},
		{"between string bounds", String("15"), OpBetween, List(String("10"), String("20")), true, nil},
		{"between malformed", Number(15), OpBetween, Number(10), false, ErrBadRange},
		{"between three elements", Number(15), OpBetween, List(Number(1), Number(2), Number(3)), false, ErrBadRange},

		{"in_list", Number(142), OpInList, List(String("142"), String("143")), true, nil},
		{"in_list case-insensitive", String("VIP"), OpInList, List(String("vip")), true, nil},
		{"in_list scalar", String("a"), OpInList, String("A"), true, nil},
		{"in_list miss", String("z"), OpInList, List(String("a")), false, nil},
		{"not_in_list", String("z"), OpNotInList, List(String("a")), true, nil},
		{"not_in_list absent", Absent(), OpNotInList, List(String("a")), false, nil},

		{"date today", String("2024-06-17T08:00:00"), OpToday, Absent(), true, nil},
		{"date bad value", String("soon"), OpToday, Absent(), false, ErrBadDate},
		{"date bool value", Bool(true), OpYesterday, Absent(), false, ErrBadDate},

		{"unknown operator", String("x"), Operator("matches"), String("x"), false, ErrUnknownOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Match(tt.actual, tt.op, tt.expected, refNow)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMatch_AbsentShortCircuitsEveryOperator(t *testing.T) {
	for _, op := range Operators() {
		if op == OpIsEmpty || op == OpIsNotEmpty {
			continue
		}
		t.Run(string(op), func(t *testing.T) {
			got, err := Match(Absent(), op, String("x"), refNow)
			assert.False(t, got)
			assert.NoError(t, err)
		})
	}
}
