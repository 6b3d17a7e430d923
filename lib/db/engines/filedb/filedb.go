package filedb

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	fileatomic "github.com/natefinch/atomic"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/util"
)

const fileExt = ".kv"

// fileImpl implements db.KVDB with one file per key inside a directory.
// File layout: 8 byte little endian write index, 8 byte little endian lease end
// (unix nanoseconds, 0 = none), then the raw value.
type fileImpl struct {
	dir       string
	mu        sync.RWMutex
	currIndex atomic.Uint64
}

// NewFileDB opens (or creates) a file engine rooted at dir
func NewFileDB(dir string) (db.KVDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	f := &fileImpl{dir: dir}

	// recover the write index from the existing files
	keys, err := f.fileKeys()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		e, _, err := f.read(key)
		if err != nil {
			return nil, err
		}
		f.SetWriteIdx(e.Index)
	}

	return f, nil
}

// fileName encodes key so that any string (including "" and "../x") maps to a safe file name
func (f *fileImpl) fileName(key string) string {
	return filepath.Join(f.dir, "k"+hex.EncodeToString([]byte(key))+fileExt)
}

func keyFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, "k") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	raw, err := hex.DecodeString(strings.TrimSuffix(strings.TrimPrefix(name, "k"), fileExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

const headerSize = 16

// read returns the entry stored for key, expired or not
func (f *fileImpl) read(key string) (util.Entry, bool, error) {
	data, err := os.ReadFile(f.fileName(key))
	if errors.Is(err, fs.ErrNotExist) {
		return util.Entry{}, false, nil
	}
	if err != nil {
		return util.Entry{}, false, err
	}
	if len(data) < headerSize {
		return util.Entry{}, false, fmt.Errorf("corrupt entry file for key %q", key)
	}
	return util.Entry{
		Key:      key,
		Value:    data[headerSize:],
		Index:    binary.LittleEndian.Uint64(data[:8]),
		DeleteAt: int64(binary.LittleEndian.Uint64(data[8:headerSize])),
	}, true, nil
}

// readLive is read, but an entry whose lease ended counts as missing
func (f *fileImpl) readLive(key string) (util.Entry, bool, error) {
	e, ok, err := f.read(key)
	if err != nil || !ok || util.Expired(e.DeleteAt, time.Now().UnixNano()) {
		return util.Entry{}, false, err
	}
	return e, true, nil
}

func (f *fileImpl) write(e util.Entry) error {
	buf := make([]byte, headerSize+len(e.Value))
	binary.LittleEndian.PutUint64(buf, e.Index)
	binary.LittleEndian.PutUint64(buf[8:], uint64(e.DeleteAt))
	copy(buf[headerSize:], e.Value)
	return fileatomic.WriteFile(f.fileName(e.Key), bytes.NewReader(buf))
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (f *fileImpl) Set(key string, value []byte, writeIndex uint64) error {
	f.SetWriteIdx(writeIndex)
	f.mu.Lock()
	defer f.mu.Unlock()

	old, loaded, err := f.read(key)
	if err != nil {
		return err
	}
	if loaded && writeIndex < old.Index {
		return nil
	}
	return f.write(util.Entry{Key: key, Value: value, Index: writeIndex})
}

func (f *fileImpl) SetIfUnset(key string, value []byte, writeIndex uint64) (bool, error) {
	f.SetWriteIdx(writeIndex)
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.fileName(key)); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := f.write(util.Entry{Key: key, Value: value, Index: writeIndex}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fileImpl) SetEIfUnset(key string, value []byte, writeIndex uint64, now, deleteAt int64) (bool, error) {
	f.SetWriteIdx(writeIndex)
	f.mu.Lock()
	defer f.mu.Unlock()

	old, loaded, err := f.read(key)
	if err != nil {
		return false, err
	}
	if loaded && !util.Expired(old.DeleteAt, now) {
		return false, nil
	}
	if err := f.write(util.Entry{Key: key, Value: value, Index: writeIndex, DeleteAt: deleteAt}); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fileImpl) Delete(key string, writeIndex uint64) error {
	f.SetWriteIdx(writeIndex)
	f.mu.Lock()
	defer f.mu.Unlock()

	old, loaded, err := f.read(key)
	if err != nil || !loaded || writeIndex < old.Index {
		return err
	}
	if err := os.Remove(f.fileName(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (f *fileImpl) Get(key string) ([]byte, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, loaded, err := f.readLive(key)
	return e.Value, loaded, err
}

func (f *fileImpl) Has(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, loaded, err := f.readLive(key)
	return loaded, err
}

func (f *fileImpl) Keys() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys, err := f.fileKeys()
	if err != nil {
		return nil, err
	}
	live := keys[:0]
	for _, key := range keys {
		if _, ok, err := f.readLive(key); err != nil {
			return nil, err
		} else if ok {
			live = append(live, key)
		}
	}
	return live, nil
}

// fileKeys lists the keys of all entry files, including expired ones
func (f *fileImpl) fileKeys() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromFileName(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (f *fileImpl) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys, err := f.fileKeys()
	if err != nil {
		return err
	}

	entries := make([]util.Entry, 0, len(keys))
	for _, key := range keys {
		e, loaded, err := f.read(key)
		if err != nil {
			return err
		}
		if loaded {
			entries = append(entries, e)
		}
	}
	return util.WriteSnapshot(w, entries)
}

func (f *fileImpl) Load(r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []util.Entry
	if err := util.ReadSnapshot(r, func(e util.Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return err
	}

	keys, err := f.fileKeys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := os.Remove(f.fileName(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var maxIndex uint64
	for _, e := range entries {
		if err := f.write(e); err != nil {
			return err
		}
		if e.Index > maxIndex {
			maxIndex = e.Index
		}
	}

	f.currIndex.Store(0)
	f.SetWriteIdx(maxIndex)
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
	db.FeatureDurable |
	db.FeatureSetEIfUnset

func (f *fileImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (f *fileImpl) GetInfo() db.DatabaseInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys, _ := f.fileKeys()
	size := 0
	for _, key := range keys {
		if st, err := os.Stat(f.fileName(key)); err == nil {
			size += int(st.Size())
		}
	}

	return db.DatabaseInfo{
		Keys:      len(keys),
		SizeBytes: size,
		DbType:    db.ImplFile,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset, db.FeatureGet, db.FeatureDelete,
			db.FeatureHas, db.FeatureKeys, db.FeatureSave, db.FeatureLoad, db.FeatureDurable, db.FeatureSetEIfUnset,
		},
		Metadata: &struct {
			Dir               string `json:"dir"`
			CurrentWriteIndex uint64 `json:"current_write_index"`
		}{
			Dir:               f.dir,
			CurrentWriteIndex: f.currIndex.Load(),
		},
	}
}

func (f *fileImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

func (f *fileImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := f.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if f.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (f *fileImpl) WriteIdx() uint64 {
	return f.currIndex.Load()
}
