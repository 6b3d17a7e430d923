package docdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Condition is one field comparison of a filter
type Condition struct {
	Field  string
	Op     Operator
	Value  any
	Strict bool // only meaningful for $in and $nin
}

// Where is an ordered filter: a document matches if it satisfies every condition.
// An empty Where matches every document in Find and none in FindOne.
type Where []Condition

func Eq(field string, value any) Condition  { return Condition{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value any) Condition  { return Condition{Field: field, Op: OpNe, Value: value} }
func Gt(field string, value any) Condition  { return Condition{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Condition { return Condition{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value any) Condition  { return Condition{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Condition { return Condition{Field: field, Op: OpLte, Value: value} }

// In matches if the field (or one of its elements) contains one of values as a substring
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Nin is the negation of In
func Nin(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpNin, Value: values}
}

// StrictIn matches if the field (or one of its elements) equals one of values
func StrictIn(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values, Strict: true}
}

// StrictNin is the negation of StrictIn
func StrictNin(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpNin, Value: values, Strict: true}
}

// --------------------------------------------------------------------------
// JSON form
// --------------------------------------------------------------------------

// ParseWhere reads the JSON filter form
//
//	{"age": {"$gt": 20}, "tags": {"$in": ["go"], "$strict": true}, "name": "Ann"}
//
// Fields keep the order they have in the document. Only the first operator of a field object
// is applied, the remaining ones are validated but ignored. A plain value is shorthand for $eq.
// Empty input and null yield an empty Where.
func ParseWhere(data []byte) (Where, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("filter must be a JSON object: %v", err)}
	}

	var where Where
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("malformed filter: %v", err)}
		}
		field := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("malformed filter value for %q: %v", field, err)}
		}

		cond, err := parseFieldFilter(field, raw)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("malformed filter: %v", err)}
	}
	return where, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func parseFieldFilter(field string, raw json.RawMessage) (Condition, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return Condition{}, &ValidationError{Msg: fmt.Sprintf("malformed filter value for %q: %v", field, err)}
	}

	obj, isObj := value.(map[string]any)
	if !isObj || !isOperatorObject(raw) {
		// shorthand: {"field": value}
		if isObj && len(obj) == 0 {
			return Condition{}, &UnsupportedOperatorError{Field: field}
		}
		return Eq(field, value), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	_ = expectDelim(dec, '{')

	cond := Condition{Field: field}
	first := true
	for dec.More() {
		tok, _ := dec.Token()
		key := tok.(string)

		var opValue any
		if err := dec.Decode(&opValue); err != nil {
			return Condition{}, &ValidationError{Msg: fmt.Sprintf("malformed filter value for %q: %v", field, err)}
		}

		if key == modStrict {
			strict, ok := opValue.(bool)
			if !ok {
				return Condition{}, &ValidationError{Msg: fmt.Sprintf("%s of %q must be a boolean", modStrict, field)}
			}
			cond.Strict = strict
			continue
		}

		op := Operator(key)
		if !SupportedOperator(op) {
			return Condition{}, &UnsupportedOperatorError{Field: field, Op: op}
		}
		if first {
			cond.Op = op
			cond.Value = opValue
			first = false
		}
	}

	if first {
		return Condition{}, &UnsupportedOperatorError{Field: field}
	}
	return cond, nil
}

// isOperatorObject reports whether the first key of the JSON object raw starts with "$"
func isOperatorObject(raw json.RawMessage) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := expectDelim(dec, '{'); err != nil {
		return false
	}
	if !dec.More() {
		return true
	}
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	key, _ := tok.(string)
	return strings.HasPrefix(key, "$")
}

// MarshalJSON writes the JSON filter form, one field object per condition in order.
// Two conditions on the same field produce a repeated key, which ParseWhere reads back in order.
func (w Where) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Field)
		if err != nil {
			return nil, err
		}
		op, err := json.Marshal(string(c.Op))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("filter value of %q: %w", c.Field, err)
		}
		buf.Write(key)
		buf.WriteString(":{")
		buf.Write(op)
		buf.WriteByte(':')
		buf.Write(value)
		if c.Strict {
			buf.WriteString(`,"` + modStrict + `":true`)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the JSON filter form, see ParseWhere
func (w *Where) UnmarshalJSON(data []byte) error {
	parsed, err := ParseWhere(data)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func (w Where) String() string {
	b, err := w.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid filter: %v>", err)
	}
	return string(b)
}
