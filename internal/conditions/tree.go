package conditions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrMissingTree  = errors.New("conditions are required")
	ErrMissingRules = errors.New("rules list is required")
	ErrEmptyField   = errors.New("field is required")
	ErrMissingValue = errors.New("value is required")
)

// Leaf is one field/operator/value comparison.
type Leaf struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value,omitzero"`
}

// Tree combines leaves with AND or OR. A tree without leaves never matches.
type Tree struct {
	Type  Combinator `json:"type"`
	Rules []Leaf     `json:"rules"`
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ErrMissingTree
	}

	var raw struct {
		Type  *Combinator `json:"type"`
		Rules *[]Leaf     `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == nil {
		return fmt.Errorf("%w: type is missing", ErrUnknownCombinator)
	}
	if raw.Rules == nil {
		return ErrMissingRules
	}

	t.Type = *raw.Type
	t.Rules = *raw.Rules
	return nil
}

func (t Tree) MarshalJSON() ([]byte, error) {
	type plain Tree
	p := plain(t)
	if p.Rules == nil {
		p.Rules = []Leaf{}
	}
	return json.Marshal(p)
}

// ParseTree decodes and validates a condition tree.
func ParseTree(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return Tree{}, err
	}
	if err := t.Validate(); err != nil {
		return Tree{}, err
	}
	return t, nil
}

// Validate checks the tree against the shapes each operator expects.
// Decoding already rejects unknown operators and combinators; Validate also
// covers trees built in code.
func (t Tree) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCombinator, t.Type)
	}

	var errs []error
	for i, leaf := range t.Rules {
		if err := leaf.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (l Leaf) Validate() error {
	if l.Field == "" {
		return ErrEmptyField
	}
	if !l.Operator.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, l.Operator)
	}
	if !l.Operator.NeedsValue() {
		return nil
	}
	if l.Value.IsAbsent() {
		return fmt.Errorf("%s: %w", l.Operator, ErrMissingValue)
	}

	switch l.Operator {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		if _, ok := l.Value.Float(); !ok {
			return fmt.Errorf("%s: %w", l.Operator, ErrNotNumeric)
		}
	case OpBetween:
		if _, _, err := bounds(l.Value); err != nil {
			return fmt.Errorf("%s: %w", l.Operator, err)
		}
	case OpLastNDays:
		n, err := dayCount(l.Value)
		if err != nil {
			return fmt.Errorf("%s: %w", l.Operator, err)
		}
		if n < 0 {
			return fmt.Errorf("%s: %w: negative day count", l.Operator, ErrBadDate)
		}
	case OpAfter, OpBefore:
		if _, err := toTime(l.Value, nil); err != nil {
			return fmt.Errorf("%s: %w", l.Operator, err)
		}
	}
	return nil
}

// CustomFieldsKey holds the custom field entries on a CRM lead.
const CustomFieldsKey = "custom_fields_values"

// Lead is one CRM record as decoded from JSON.
type Lead map[string]any

// UnmarshalJSON keeps numbers as json.Number so integer ids and amounts keep
// every digit.
func (l *Lead) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	*l = fields
	return nil
}

// Resolve looks up field on the lead: a direct key wins, then the first custom
// field entry whose field_id or field_code equals field. The first value of
// that entry is returned. Unknown fields are absent.
func Resolve(field string, lead Lead) Value {
	if raw, ok := lead[field]; ok {
		return FromAny(raw)
	}

	for _, entry := range customFields(lead[CustomFieldsKey]) {
		if !sameRef(entry["field_id"], field) && !sameRef(entry["field_code"], field) {
			continue
		}
		values := asSlice(entry["values"])
		if len(values) == 0 {
			continue
		}
		first, ok := values[0].(map[string]any)
		if !ok {
			return Absent()
		}
		return FromAny(first["value"])
	}

	return Absent()
}

func customFields(raw any) []map[string]any {
	switch t := raw.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if entry, ok := item.(map[string]any); ok {
				out = append(out, entry)
			}
		}
		return out
	}
	return nil
}

func asSlice(raw any) []any {
	switch t := raw.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	}
	return nil
}

// sameRef compares a custom field id or code with a rule's field reference.
// CRM ids arrive as JSON numbers, rule references are strings.
func sameRef(raw any, field string) bool {
	switch t := raw.(type) {
	case nil:
		return false
	case string:
		return t == field
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64) == field
	case int:
		return strconv.Itoa(t) == field
	case int64:
		return strconv.FormatInt(t, 10) == field
	case json.Number:
		return t.String() == field
	}
	return false
}
