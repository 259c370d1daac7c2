package conditions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind enumerates the shapes a lead or expected value can take.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a closed sum over the data found in CRM records and rule leaves.
// The zero Value is absent.
type Value struct {
	kind Kind
	str  string
	num  float64
	// raw keeps the JSON spelling of a decoded number so it re-encodes unchanged.
	raw  string
	b    bool
	list []Value
}

func Absent() Value { return Value{} }
func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// FromAny converts a decoded JSON value (or a plain Go scalar) into a Value.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return integer(int64(t))
	case int32:
		return integer(int64(t))
	case int64:
		return integer(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Value{kind: KindNumber, num: f, raw: t.String()}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return String(fmt.Sprint(t))
		}
		return String(string(data))
	}
}

func integer(n int64) Value {
	return Value{kind: KindNumber, num: float64(n), raw: strconv.FormatInt(n, 10)}
}

// isIntegerLiteral reports an optionally signed run of digits.
func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// IsZero lets `omitzero` drop absent values when encoding leaves.
func (v Value) IsZero() bool { return v.kind == KindAbsent }

// IsEmpty reports absent, null, "" and [].
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindAbsent, KindNull:
		return true
	case KindString:
		return v.str == ""
	case KindList:
		return len(v.list) == 0
	}
	return false
}

func (v Value) Items() []Value {
	return v.list
}

// Text is the string form used by the text and list operators. Integers keep
// their exact digits even past float64 precision.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if isIntegerLiteral(v.raw) {
			return v.raw
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.Text()
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// Float coerces to float64. Strings are parsed, booleans map to 1 and 0.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Interface returns the plain Go form (nil for absent and null).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindAbsent, KindNull:
		return "<" + v.kind.String() + ">"
	case KindString:
		return strconv.Quote(v.str)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindAbsent, KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if v.raw != "" {
			return []byte(v.raw), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	}
	return nil, fmt.Errorf("conditions: cannot encode %s", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}
