package memdb

import (
	"io"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/util"
)

// --------------------------------------------------------------------------
// Core memory database structure
// --------------------------------------------------------------------------

// entry is a stored value together with the write index it was written at and the end of its lease
type entry struct {
	value    []byte
	index    uint64
	deleteAt int64
}

func (e entry) live() bool {
	return !util.Expired(e.deleteAt, time.Now().UnixNano())
}

// memImpl implements db.KVDB with a fixed number of xsync.MapOf shards
type memImpl struct {
	seed      uint64
	shards    []*xsync.MapOf[string, entry]
	currIndex atomic.Uint64
}

// DBOptions configures the memImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)
}

// DefaultOptions returns the default memImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// NewMemDB creates a new in-memory engine with the specified options (optional)
func NewMemDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	m := &memImpl{seed: util.GenerateSeed()}
	m.shards = newShards(opts.NumShards)
	return m
}

func newShards(n int) []*xsync.MapOf[string, entry] {
	shards := make([]*xsync.MapOf[string, entry], n)
	for i := range shards {
		shards[i] = xsync.NewMapOf[string, entry]()
	}
	return shards
}

func (m *memImpl) shard(key string) *xsync.MapOf[string, entry] {
	return m.shards[util.ShardIndex(util.HashString(key, m.seed), len(m.shards))]
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores value for key. Writes with an index older than the stored one are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memImpl) Set(key string, value []byte, writeIndex uint64) error {
	m.SetWriteIdx(writeIndex)
	valueCopy := util.CopyBytes(value)

	m.shard(key).Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && writeIndex < old.index {
			return old, false
		}
		return entry{value: valueCopy, index: writeIndex}, false
	})
	return nil
}

// SetIfUnset stores value for key only if the key does not exist yet.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memImpl) SetIfUnset(key string, value []byte, writeIndex uint64) (bool, error) {
	m.SetWriteIdx(writeIndex)
	_, loaded := m.shard(key).LoadOrStore(key, entry{value: util.CopyBytes(value), index: writeIndex})
	return !loaded, nil
}

// SetEIfUnset stores value for key, leased until deleteAt, if the key is missing or its lease ended at now.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memImpl) SetEIfUnset(key string, value []byte, writeIndex uint64, now, deleteAt int64) (bool, error) {
	m.SetWriteIdx(writeIndex)
	valueCopy := util.CopyBytes(value)

	written := false
	m.shard(key).Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && !util.Expired(old.deleteAt, now) {
			return old, false
		}
		written = true
		return entry{value: valueCopy, index: writeIndex, deleteAt: deleteAt}, false
	})
	return written, nil
}

// Delete removes key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memImpl) Delete(key string, writeIndex uint64) error {
	m.SetWriteIdx(writeIndex)
	m.shard(key).Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && writeIndex < old.index {
			return old, false
		}
		return old, true
	})
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value for key.
func (m *memImpl) Get(key string) ([]byte, bool, error) {
	e, ok := m.shard(key).Load(key)
	if !ok || !e.live() {
		return nil, false, nil
	}
	return util.CopyBytes(e.value), true, nil
}

// Has reports whether key exists.
func (m *memImpl) Has(key string) (bool, error) {
	e, ok := m.shard(key).Load(key)
	return ok && e.live(), nil
}

// Keys returns all keys in ascending order.
func (m *memImpl) Keys() ([]string, error) {
	var keys []string
	for _, s := range m.shards {
		s.Range(func(key string, e entry) bool {
			if e.live() {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return keys, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of the engine to w.
// Concurrent writes during Save are allowed, each entry is copied when visited.
func (m *memImpl) Save(w io.Writer) error {
	var entries []util.Entry
	for _, s := range m.shards {
		s.Range(func(key string, e entry) bool {
			entries = append(entries, util.Entry{Key: key, Value: util.CopyBytes(e.value), Index: e.index, DeleteAt: e.deleteAt})
			return true
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return util.WriteSnapshot(w, entries)
}

// Load replaces the engine contents with the snapshot read from r.
//
// Thread-safety: This function must not be called concurrently with any other method.
func (m *memImpl) Load(r io.Reader) error {
	shards := newShards(len(m.shards))
	var maxIndex uint64

	err := util.ReadSnapshot(r, func(e util.Entry) error {
		shards[util.ShardIndex(util.HashString(e.Key, m.seed), len(shards))].Store(e.Key, entry{value: e.Value, index: e.Index, deleteAt: e.DeleteAt})
		if e.Index > maxIndex {
			maxIndex = e.Index
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.shards = shards
	m.currIndex.Store(0)
	m.SetWriteIdx(maxIndex)
	return nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureKeys |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeatureSetEIfUnset

// GetInfo returns statistics about the engine
func (m *memImpl) GetInfo() db.DatabaseInfo {
	keys := 0
	size := 0
	shardSizes := make([]int, len(m.shards))
	for i, s := range m.shards {
		s.Range(func(key string, e entry) bool {
			keys++
			size += len(key) + len(e.value) + 8
			return true
		})
		shardSizes[i] = s.Size()
	}

	return db.DatabaseInfo{
		Keys:      keys,
		SizeBytes: size,
		DbType:    db.ImplMemory,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset, db.FeatureGet, db.FeatureDelete,
			db.FeatureHas, db.FeatureKeys, db.FeatureSave, db.FeatureLoad, db.FeatureSetEIfUnset,
		},
		Metadata: &struct {
			CurrentWriteIndex uint64 `json:"current_write_index"`
			ShardCount        int    `json:"shard_count"`
			ShardSizes        []int  `json:"shard_sizes"`
		}{
			CurrentWriteIndex: m.currIndex.Load(),
			ShardCount:        len(m.shards),
			ShardSizes:        shardSizes,
		},
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (m *memImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close drops all entries
func (m *memImpl) Close() error {
	for _, s := range m.shards {
		s.Clear()
	}
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

// SetWriteIdx updates the current index if newIdx is greater than the current one
func (m *memImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := m.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if m.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index
func (m *memImpl) WriteIdx() uint64 {
	return m.currIndex.Load()
}
