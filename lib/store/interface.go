package store

import (
	"fmt"
	"time"

	"github.com/roberthgnz/lsdb/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new engine used by the store.
// This is used to abstract the creation of the engine from the store implementation.
type DBFactory func() db.KVDB

// IStore is the blob storage contract a document database is persisted through.
// A document database occupies exactly one key (its name) holding the JSON snapshot of all collections.
type IStore interface {
	// Set inserts or updates a key–value pair.
	Set(key string, value []byte) (err error)
	// SetIfUnset inserts a key–value pair if the key does not exist.
	// No error is returned if the key already exists, the old value is kept.
	SetIfUnset(key string, value []byte) (err error)
	// SetEIfUnset inserts a key–value pair that disappears after lease (0 = never),
	// if the key does not exist or the lease of the existing entry is over.
	// No error is returned if a live entry exists, it is kept.
	SetEIfUnset(key string, value []byte, lease time.Duration) (err error)
	// Delete deletes a key–value pair.
	Delete(key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the store.
	Has(key string) (loaded bool, err error)
	// Keys returns all keys in ascending order.
	Keys() (keys []string, err error)
	// GetDBInfo returns metadata about the engine underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code (of type RetCode) and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying engine.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// LeaseWindow returns the current time and the end of a lease starting now, both in unix nanoseconds.
// A lease <= 0 has no end (0).
func LeaseWindow(lease time.Duration) (now, deleteAt int64) {
	now = time.Now().UnixNano()
	if lease > 0 {
		deleteAt = now + int64(lease)
	}
	return now, deleteAt
}
