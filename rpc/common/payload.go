package common

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/roberthgnz/lsdb/lib/docdb"
)

// DocPayload is the JSON body of document requests and responses.
// Each operation only fills the fields it needs.
type DocPayload struct {
	// requests
	Names   any                `json:"names,omitempty"`   // declare
	Replace bool               `json:"replace,omitempty"` // declare
	Where   docdb.Where        `json:"where,omitempty"`   // findOne, remove
	Find    *docdb.FindOptions `json:"find,omitempty"`    // find
	Match   *docdb.Match       `json:"match,omitempty"`   // update

	// requests and responses
	Document  docdb.Document   `json:"document,omitempty"`  // insert, update (patch / pre-image), findOne
	Documents []docdb.Document `json:"documents,omitempty"` // insertMany, find, remove, all

	// responses
	Count       int                         `json:"count,omitempty"`       // count
	Collections map[string][]docdb.Document `json:"collections,omitempty"` // snapshot
}

// --------------------------------------------------------------------------
// Error kinds
// --------------------------------------------------------------------------

// Prefixes marking the kind of a document error in Message.Err
const (
	ErrPrefixValidation          = "validation:"
	ErrPrefixUnsupportedOperator = "unsupported operator:"
	ErrPrefixUnknownCollection   = "unknown collection:"
)

// EncodeError renders err for Message.Err, keeping the kind of document errors recoverable by DecodeError
func EncodeError(err error) string {
	var (
		verr *docdb.ValidationError
		uerr *docdb.UnsupportedOperatorError
		cerr *docdb.UnknownCollectionError
	)
	switch {
	case errors.As(err, &verr):
		return ErrPrefixValidation + verr.Msg
	case errors.As(err, &uerr):
		raw, _ := json.Marshal(uerr)
		return ErrPrefixUnsupportedOperator + string(raw)
	case errors.As(err, &cerr):
		return ErrPrefixUnknownCollection + cerr.Collection
	}
	return err.Error()
}

// DecodeError rebuilds the typed document error encoded by EncodeError.
// Messages without a known prefix become plain errors.
func DecodeError(s string) error {
	switch {
	case strings.HasPrefix(s, ErrPrefixValidation):
		return &docdb.ValidationError{Msg: strings.TrimPrefix(s, ErrPrefixValidation)}
	case strings.HasPrefix(s, ErrPrefixUnsupportedOperator):
		uerr := &docdb.UnsupportedOperatorError{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(s, ErrPrefixUnsupportedOperator)), uerr); err != nil {
			return errors.New(s)
		}
		return uerr
	case strings.HasPrefix(s, ErrPrefixUnknownCollection):
		return &docdb.UnknownCollectionError{Collection: strings.TrimPrefix(s, ErrPrefixUnknownCollection)}
	}
	return errors.New(s)
}
