package docdb

import (
	"fmt"
	"sort"
)

// Predicate decides whether a document matches a compiled filter
type Predicate func(doc Document) bool

type compiledCondition struct {
	field  string
	fn     predicateFunc
	value  any
	strict bool
}

// CompileWhere validates where and turns it into a predicate.
// It fails with *UnsupportedOperatorError for an unknown operator.
func CompileWhere(where Where) (Predicate, error) {
	compiled := make([]compiledCondition, 0, len(where))
	for _, c := range where {
		fn, ok := operators[c.Op]
		if !ok {
			return nil, &UnsupportedOperatorError{Field: c.Field, Op: c.Op}
		}
		value, err := normalizeValue(c.Value)
		if err != nil {
			return nil, &ValidationError{Msg: fmt.Sprintf("filter value of %q is not JSON compatible: %v", c.Field, err)}
		}
		compiled = append(compiled, compiledCondition{field: c.Field, fn: fn, value: value, strict: c.Strict})
	}

	return func(doc Document) bool {
		for _, c := range compiled {
			v, present := doc[c.field]
			if !c.fn(v, present, c.value, c.strict) {
				return false
			}
		}
		return true
	}, nil
}

func validateSort(s *Sort) error {
	if s == nil {
		return nil
	}
	if s.Field == "" {
		return &ValidationError{Msg: "sort field must not be empty"}
	}
	switch s.Order {
	case Asc, Desc, "":
		return nil
	}
	return &ValidationError{Msg: fmt.Sprintf("sort order must be %q or %q, got %q", Asc, Desc, s.Order)}
}

// query filters docs, then sorts, then applies skip and limit. docs is not modified.
func query(docs []Document, opts FindOptions) ([]Document, error) {
	match, err := CompileWhere(opts.Where)
	if err != nil {
		return nil, err
	}
	if err := validateSort(opts.Sort); err != nil {
		return nil, err
	}

	result := make([]Document, 0, len(docs))
	for _, d := range docs {
		if match(d) {
			result = append(result, d)
		}
	}

	if s := opts.Sort; s != nil {
		desc := s.Order == Desc
		sort.SliceStable(result, func(i, j int) bool {
			a, aok := result[i][s.Field]
			b, bok := result[j][s.Field]
			c := compareForSort(a, aok, b, bok)
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	return paginate(result, opts.Skip, opts.Limit), nil
}

func paginate(docs []Document, skip, limit int) []Document {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(docs) {
		return []Document{}
	}
	docs = docs[skip:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
