package docdb

import (
	"encoding/json"
	"fmt"
)

// normalizeValue converts v into the types encoding/json decodes into,
// so that documents compare the same before and after a reload.
func normalizeValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	v, err := normalizeValue(map[string]any(doc))
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("document is not JSON compatible: %v", err)}
	}
	return Document(v.(map[string]any)), nil
}

// deepCopy copies the JSON value v, maps and slices included
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = deepCopy(e)
		}
		return c
	case Document:
		return map[string]any(copyDocument(t))
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopy(e)
		}
		return c
	}
	return v
}

func copyDocument(d Document) Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = deepCopy(v)
	}
	return c
}

func copyDocuments(docs []Document) []Document {
	c := make([]Document, len(docs))
	for i, d := range docs {
		c[i] = copyDocument(d)
	}
	return c
}
