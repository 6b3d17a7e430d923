package docdb

import "fmt"

// Messages carried by the ValidationError returned from Open and DeclareCollections
const (
	MsgNotAString    = "value must be a string"
	MsgNotAllStrings = "all values must be strings"
	MsgReservedName  = "database name must not start with " + ReservedPrefix
)

// ValidationError reports malformed caller input (collection names, sort options, filter documents)
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

// UnsupportedOperatorError reports a filter operator outside the supported set
type UnsupportedOperatorError struct {
	Field string
	Op    Operator
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("no operator given for field %q", e.Field)
	}
	return fmt.Sprintf("Operator %s is not supported", e.Op)
}

// UnknownCollectionError reports an operation on a collection that was never declared
type UnknownCollectionError struct {
	Collection string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("collection %q is not declared", e.Collection)
}
