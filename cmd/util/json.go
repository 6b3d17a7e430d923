package util

import (
	"encoding/json"
	"fmt"

	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/tailscale/hujson"
)

// StandardizeJSON accepts JSON with comments and trailing commas (HuJSON) and returns plain JSON
func StandardizeJSON(arg string) ([]byte, error) {
	data, err := hujson.Standardize([]byte(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON %q: %w", arg, err)
	}
	return data, nil
}

// ParseJSONArg decodes a command line argument given as HuJSON into v
func ParseJSONArg(arg string, v any) error {
	data, err := StandardizeJSON(arg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON %q: %w", arg, err)
	}
	return nil
}

// ParseWhereArg parses a filter argument. An empty argument is the empty filter.
// If strict is set, $in and $nin compare by equality.
func ParseWhereArg(arg string, strict bool) (docdb.Where, error) {
	if arg == "" {
		return docdb.Where{}, nil
	}
	data, err := StandardizeJSON(arg)
	if err != nil {
		return nil, err
	}
	where, err := docdb.ParseWhere(data)
	if err != nil {
		return nil, err
	}
	if strict {
		for i := range where {
			if where[i].Op == docdb.OpIn || where[i].Op == docdb.OpNin {
				where[i].Strict = true
			}
		}
	}
	return where, nil
}

// ParseMatchArg parses a single field object like {"name": "Ann"}
func ParseMatchArg(arg string) (docdb.Match, error) {
	data, err := StandardizeJSON(arg)
	if err != nil {
		return docdb.Match{}, err
	}
	return docdb.ParseMatch(data)
}

// ParseDocumentArg parses a JSON object into a document
func ParseDocumentArg(arg string) (docdb.Document, error) {
	var doc docdb.Document
	if err := ParseJSONArg(arg, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document must be a JSON object, got %s", arg)
	}
	return doc, nil
}

// ParseDocumentsArg parses a JSON array of objects
func ParseDocumentsArg(arg string) ([]docdb.Document, error) {
	var docs []docdb.Document
	if err := ParseJSONArg(arg, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ParseNamesArg turns the arguments of declare into the names value of DeclareCollections.
// A single argument starting with '[' is read as a JSON list, one plain argument is a single name.
func ParseNamesArg(args []string) (any, error) {
	if len(args) == 1 {
		if len(args[0]) > 0 && args[0][0] == '[' {
			var names []any
			if err := ParseJSONArg(args[0], &names); err != nil {
				return nil, err
			}
			return names, nil
		}
		return args[0], nil
	}
	return args, nil
}

// PrintJSON writes v as indented JSON followed by a newline
func PrintJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
