package conditions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrBadDate = errors.New("value is not a date")

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// toTime accepts integral epoch seconds or an ISO-8601 string. Strings
// without an offset are read in loc (UTC when loc is nil).
func toTime(v Value, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch v.Kind() {
	case KindNumber:
		f, _ := v.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return time.Time{}, fmt.Errorf("%w: %s is not whole seconds", ErrBadDate, v.Text())
		}
		return time.Unix(int64(f), 0).In(loc), nil
	case KindString:
		s := strings.TrimSpace(v.str)
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, v.str)
	}
	return time.Time{}, fmt.Errorf("%w: got %s", ErrBadDate, v.Kind())
}

// Window is a half-open [Start, End) range unless Closed is set.
type Window struct {
	Start  time.Time
	End    time.Time
	Closed bool
}

func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.Closed {
		return !t.After(w.End)
	}
	return t.Before(w.End)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayWindow(day time.Time) Window {
	return Window{Start: day, End: day.AddDate(0, 0, 1)}
}

func Today(now time.Time) Window {
	return dayWindow(startOfDay(now))
}

func Yesterday(now time.Time) Window {
	return dayWindow(startOfDay(now).AddDate(0, 0, -1))
}

// ThisWeek starts on Monday.
func ThisWeek(now time.Time) Window {
	today := startOfDay(now)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	start := today.AddDate(0, 0, -sinceMonday)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

func LastWeek(now time.Time) Window {
	w := ThisWeek(now)
	return Window{Start: w.Start.AddDate(0, 0, -7), End: w.Start}
}

func ThisMonth(now time.Time) Window {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// LastMonth rolls back into December of the previous year in January.
func LastMonth(now time.Time) Window {
	y, m, _ := now.Date()
	end := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Window{Start: time.Date(y, m-1, 1, 0, 0, 0, 0, now.Location()), End: end}
}

// LastNDays covers midnight n days ago through now, inclusive.
func LastNDays(now time.Time, n int) Window {
	return Window{Start: startOfDay(now).AddDate(0, 0, -n), End: now, Closed: true}
}

// maxDayCount bounds last_n_days to roughly a century either way.
const maxDayCount = 36500

func dayCount(v Value) (int, error) {
	var f float64
	switch v.Kind() {
	case KindNumber:
		f, _ = v.Float()
	case KindString:
		n, err := strconv.Atoi(strings.TrimSpace(v.str))
		if err != nil {
			return 0, fmt.Errorf("%w: day count %q", ErrBadDate, v.str)
		}
		f = float64(n)
	default:
		return 0, fmt.Errorf("%w: day count must be a number, got %s", ErrBadDate, v.Kind())
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxDayCount {
		return 0, fmt.Errorf("%w: day count %s out of range", ErrBadDate, v)
	}
	return int(f), nil
}

// CheckDate applies a date operator. now fixes the reference point; its
// location sets the calendar used for day, week and month boundaries.
func CheckDate(actual Value, op Operator, expected Value, now time.Time) (bool, error) {
	t, err := toTime(actual, now.Location())
	if err != nil {
		return false, err
	}

	switch op {
	case OpToday:
		return Today(now).Contains(t), nil
	case OpYesterday:
		return Yesterday(now).Contains(t), nil
	case OpThisWeek:
		return ThisWeek(now).Contains(t), nil
	case OpLastWeek:
		return LastWeek(now).Contains(t), nil
	case OpThisMonth:
		return ThisMonth(now).Contains(t), nil
	case OpLastMonth:
		return LastMonth(now).Contains(t), nil
	case OpLastNDays:
		n, err := dayCount(expected)
		if err != nil {
			return false, err
		}
		return LastNDays(now, n).Contains(t), nil
	case OpAfter, OpBefore:
		ref, err := toTime(expected, now.Location())
		if err != nil {
			return false, fmt.Errorf("expected value: %w", err)
		}
		if op == OpAfter {
			return t.After(ref), nil
		}
		return t.Before(ref), nil
	}
	return false, fmt.Errorf("%w: %q is not a date operator", ErrUnknownOperator, op)
}
