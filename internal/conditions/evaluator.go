package conditions

import (
	"time"

	"leadcolor/internal/logger"
)

// Evaluator runs condition trees against leads. It holds no mutable state
// and is safe for concurrent use.
type Evaluator struct {
	now    func() time.Time
	loc    *time.Location
	logger logger.Logger
}

type Option func(*Evaluator)

// WithClock injects the source of "now" for the date operators.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// WithLocation sets the calendar used for day, week and month boundaries.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		now:    time.Now,
		loc:    time.Local,
		logger: logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// At returns a copy whose clock is frozen at now, so one resolution pass
// sees a single reference time.
func (e *Evaluator) At(now time.Time) *Evaluator {
	c := *e
	c.now = func() time.Time { return now }
	return &c
}

// In returns a copy that uses loc for calendar boundaries.
func (e *Evaluator) In(loc *time.Location) *Evaluator {
	c := *e
	WithLocation(loc)(&c)
	return &c
}

func (e *Evaluator) Now() time.Time {
	return e.now().In(e.loc)
}

// Evaluate reports whether lead satisfies tree. Empty trees never match.
func (e *Evaluator) Evaluate(tree Tree, lead Lead) bool {
	if len(tree.Rules) == 0 {
		return false
	}

	now := e.Now()
	switch tree.Type {
	case And:
		for _, leaf := range tree.Rules {
			if !e.evaluateLeaf(leaf, lead, now) {
				return false
			}
		}
		return true
	case Or:
		for _, leaf := range tree.Rules {
			if e.evaluateLeaf(leaf, lead, now) {
				return true
			}
		}
		return false
	}

	e.logger.Warnw("condition tree has unknown combinator", "type", string(tree.Type))
	return false
}

func (e *Evaluator) evaluateLeaf(leaf Leaf, lead Lead, now time.Time) bool {
	result := e.explainLeaf(leaf, lead, now)
	return result.Matched
}

func (e *Evaluator) explainLeaf(leaf Leaf, lead Lead, now time.Time) LeafResult {
	result := LeafResult{
		Field:    leaf.Field,
		Operator: leaf.Operator,
		Expected: leaf.Value,
	}

	if leaf.Field == "" {
		result.Error = ErrEmptyField.Error()
		e.logger.Warnw("condition leaf skipped", "operator", string(leaf.Operator), "error", result.Error)
		return result
	}

	result.Actual = Resolve(leaf.Field, lead)
	matched, err := Match(result.Actual, leaf.Operator, leaf.Value, now)
	result.Matched = matched
	if err != nil {
		result.Error = err.Error()
		e.logger.Warnw("condition leaf evaluated to false",
			"field", leaf.Field,
			"operator", string(leaf.Operator),
			"actual", result.Actual.String(),
			"expected", leaf.Value.String(),
			"error", err,
		)
	}
	return result
}

// LeafResult is the outcome of one leaf, used to explain test runs.
type LeafResult struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Expected Value    `json:"expected"`
	Actual   Value    `json:"actual"`
	Matched  bool     `json:"matched"`
	Error    string   `json:"error,omitempty"`
}

type Report struct {
	Matches bool         `json:"matches"`
	Leaves  []LeafResult `json:"leaves"`
}

// Explain evaluates every leaf without short-circuiting and reports each one.
// Report.Matches always equals Evaluate for the same inputs.
func (e *Evaluator) Explain(tree Tree, lead Lead) Report {
	now := e.Now()
	report := Report{Leaves: make([]LeafResult, 0, len(tree.Rules))}

	anyTrue, allTrue := false, true
	for _, leaf := range tree.Rules {
		r := e.explainLeaf(leaf, lead, now)
		report.Leaves = append(report.Leaves, r)
		anyTrue = anyTrue || r.Matched
		allTrue = allTrue && r.Matched
	}

	if len(tree.Rules) == 0 {
		return report
	}
	switch tree.Type {
	case And:
		report.Matches = allTrue
	case Or:
		report.Matches = anyTrue
	}
	return report
}
