package docdb

import (
	"encoding/json"
	"fmt"
)

// IDField is the system assigned identifier every document carries
const IDField = "_id"

// Document is a flat mapping of field name to a JSON compatible value.
// Stored documents only ever hold the types encoding/json decodes into:
// float64, string, bool, nil, []any and map[string]any.
type Document map[string]any

// ID returns the document's _id or "" if it has none
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Match selects the first document whose Field equals Value
type Match struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// ParseMatch reads a match from a JSON object holding exactly one field, e.g. {"foo":"bar"}
func ParseMatch(data []byte) (Match, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Match{}, &ValidationError{Msg: fmt.Sprintf("match must be a JSON object: %v", err)}
	}
	if len(obj) != 1 {
		return Match{}, &ValidationError{Msg: fmt.Sprintf("match must have exactly one field, got %d", len(obj))}
	}
	for field, value := range obj {
		return Match{Field: field, Value: value}, nil
	}
	return Match{}, nil
}

// Order is the direction of a sort
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort orders a result by one field
type Sort struct {
	Field string `json:"field"`
	Order Order  `json:"order"`
}

// FindOptions controls filtering, ordering and pagination of Find.
// Skip and Limit are applied after filtering and sorting. Limit <= 0 means no limit.
type FindOptions struct {
	Where Where `json:"where,omitempty"`
	Sort  *Sort `json:"sort,omitempty"`
	Skip  int   `json:"skip,omitempty"`
	Limit int   `json:"limit,omitempty"`
}
