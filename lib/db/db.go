package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplSQLite Implementation = "sqlite"
	ImplFile   Implementation = "file"
)

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureSet         Feature = 1 << iota // Support for Set operations
	FeatureSetIfUnset                      // Support for SetIfUnset operations
	FeatureGet                             // Support for Get operations
	FeatureDelete                          // Support for Delete operations
	FeatureHas                             // Support for Has operations
	FeatureKeys                            // Support for listing keys
	FeatureSave                            // Support for Save operations
	FeatureLoad                            // Support for Load operations
	FeatureDurable                         // Data survives a process restart
	FeatureSetEIfUnset                     // Support for leased SetEIfUnset operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetIfUnset:
		return "SetIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureKeys:
		return "Keys"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureDurable:
		return "Durable"
	case FeatureSetEIfUnset:
		return "SetEIfUnset"
	default:
		return "Unknown"
	}
}

// MarshalText lets feature lists show up by name in JSON info dumps
func (f Feature) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

type DatabaseInfo struct {
	Keys              int            `json:"keys"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the engine contract every blob store behind a document database has to satisfy.
// Keys are arbitrary strings (a database name for document stores), values are opaque blobs.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates the value for key.
	// The writeIndex parameter is a logical timestamp, it only ever moves the engine's index forward.
	Set(key string, value []byte, writeIndex uint64) (err error)

	// SetIfUnset inserts the value for key only if the key does not exist yet.
	// The returned bool reports whether the value was written.
	// An existing entry is never replaced, even if its lease ran out.
	SetIfUnset(key string, value []byte, writeIndex uint64) (written bool, err error)

	// SetEIfUnset inserts the value for key, leased until deleteAt (unix nanoseconds, 0 = no lease),
	// if the key does not exist or the lease of the existing entry ended at or before now.
	// now comes from the caller so that every replica applying the write takes the same decision.
	// Reads do not return an entry once its lease ended.
	SetEIfUnset(key string, value []byte, writeIndex uint64, now, deleteAt int64) (written bool, err error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string, writeIndex uint64) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves a copy of the value for key.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether key exists.
	Has(key string) (loaded bool, err error)

	// Keys returns all keys in ascending order.
	Keys() (keys []string, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes a portable snapshot of every entry to w.
	Save(w io.Writer) (err error)

	// Load replaces the engine contents with a snapshot produced by Save.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the implementation supports the specified feature(s).
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the engine.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index.
	WriteIdx() (index uint64)

	// Close releases all resources held by the engine.
	Close() (err error)
}
