package docdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/roberthgnz/lsdb/lib/lockmgr"
	"github.com/roberthgnz/lsdb/lib/store"
)

var log = logger.GetLogger("docdb")

// Database is a handle on one named document database persisted in a store.IStore.
// The whole database is held in memory and written back as one JSON snapshot after every mutation.
//
// A Database is not safe for concurrent use. Handles sharing a name only see each other's
// writes after Reload, unless they were opened WithLocker.
type Database struct {
	name  string
	store store.IStore
	opts  *options
	data  map[string][]Document
}

var _ IDatabase = (*Database)(nil)

// ReservedPrefix starts the store keys lsdb keeps for itself (locks), no database name may use it
const ReservedPrefix = "lsdb/"

func lockKey(name string) string {
	return ReservedPrefix + "lock/" + name
}

// Open loads the database name from s, creating an empty one if it does not exist yet.
// Names starting with ReservedPrefix are rejected with a *ValidationError.
func Open(s store.IStore, name string, opts ...Option) (*Database, error) {
	if strings.HasPrefix(name, ReservedPrefix) {
		return nil, &ValidationError{Msg: MsgReservedName}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := s.SetIfUnset(name, []byte("{}")); err != nil {
		return nil, fmt.Errorf("failed to initialize database %q: %w", name, err)
	}

	d := &Database{name: name, store: s, opts: o}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	log.Debugf("opened database %q with %d collection(s)", name, len(d.data))
	return d, nil
}

// Name returns the database name
func (d *Database) Name() string {
	return d.name
}

// Reload replaces the in-memory state with the snapshot currently persisted in the store
func (d *Database) Reload() error {
	raw, ok, err := d.store.Get(d.name)
	if err != nil {
		return fmt.Errorf("failed to load database %q: %w", d.name, err)
	}

	data := make(map[string][]Document)
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("database %q holds a malformed snapshot: %w", d.name, err)
		}
	}
	for name, docs := range data {
		if docs == nil {
			data[name] = []Document{}
		}
	}

	d.data = data
	return nil
}

func (d *Database) persist() error {
	raw, err := json.Marshal(d.data)
	if err != nil {
		return fmt.Errorf("failed to encode database %q: %w", d.name, err)
	}
	if err := d.store.Set(d.name, raw); err != nil {
		return fmt.Errorf("failed to persist database %q: %w", d.name, err)
	}
	return nil
}

// mutate runs fn against the current state and persists the result if fn reports a change.
// If persisting fails the in-memory state is rolled back to the stored snapshot.
func (d *Database) mutate(fn func() (changed bool, err error)) error {
	if d.opts.locker != nil {
		key := lockKey(d.name)
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.lockTimeout)
		ownerID, err := lockmgr.Acquire(ctx, d.opts.locker, key, d.opts.lockTimeout, d.opts.lockInterval)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to lock database %q: %w", d.name, err)
		}
		defer func() {
			if _, err := d.opts.locker.ReleaseLock(key, ownerID); err != nil {
				log.Warningf("failed to release lock of database %q: %v", d.name, err)
			}
		}()

		if err := d.Reload(); err != nil {
			return err
		}
	}

	changed, err := fn()
	if err != nil || !changed {
		return err
	}

	if err := d.persist(); err != nil {
		if rerr := d.Reload(); rerr != nil {
			log.Errorf("failed to roll back database %q: %v", d.name, rerr)
		}
		return err
	}
	return nil
}

func (d *Database) collection(name string) ([]Document, error) {
	docs, ok := d.data[name]
	if !ok {
		return nil, &UnknownCollectionError{Collection: name}
	}
	return docs, nil
}

// --------------------------------------------------------------------------
// Collection Store
// --------------------------------------------------------------------------

// ParseCollectionNames accepts a string, a []string or a []any holding only strings
func ParseCollectionNames(names any) ([]string, error) {
	switch v := names.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, &ValidationError{Msg: MsgNotAllStrings}
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, &ValidationError{Msg: MsgNotAString}
}

func (d *Database) DeclareCollections(names any, replace bool) error {
	list, err := ParseCollectionNames(names)
	if err != nil {
		return err
	}

	return d.mutate(func() (bool, error) {
		for _, name := range list {
			if _, exists := d.data[name]; replace || !exists {
				d.data[name] = []Document{}
			}
		}
		return true, nil
	})
}

func (d *Database) Count(collection string) (int, error) {
	docs, err := d.collection(collection)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (d *Database) Insert(collection string, doc Document) (Document, error) {
	stored, err := d.InsertMany(collection, []Document{doc})
	if err != nil {
		return nil, err
	}
	return stored[0], nil
}

func (d *Database) InsertMany(collection string, docs []Document) ([]Document, error) {
	prepared := make([]Document, len(docs))
	for i, doc := range docs {
		n, err := normalizeDocument(doc)
		if err != nil {
			return nil, err
		}
		prepared[i] = n
	}

	var stored []Document
	err := d.mutate(func() (bool, error) {
		existing, err := d.collection(collection)
		if err != nil {
			return false, err
		}

		taken := make(map[string]struct{}, len(existing)+len(prepared))
		for _, e := range existing {
			taken[e.ID()] = struct{}{}
		}
		for _, doc := range prepared {
			id, err := uniqueID(d.opts.idGen, taken)
			if err != nil {
				return false, err
			}
			doc[IDField] = id
		}

		d.data[collection] = append(existing, prepared...)
		stored = copyDocuments(prepared)
		return len(prepared) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (d *Database) Update(collection string, m Match, patch Document) (Document, bool, error) {
	normPatch, err := normalizeDocument(patch)
	if err != nil {
		return nil, false, err
	}
	match, err := CompileWhere(Where{Eq(m.Field, m.Value)})
	if err != nil {
		return nil, false, err
	}

	var (
		before Document
		found  bool
	)
	err = d.mutate(func() (bool, error) {
		docs, err := d.collection(collection)
		if err != nil {
			return false, err
		}
		for i, doc := range docs {
			if !match(doc) {
				continue
			}
			before = copyDocument(doc)
			found = true

			merged := copyDocument(doc)
			for k, v := range normPatch {
				if k == IDField {
					continue
				}
				merged[k] = v
			}
			docs[i] = merged
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, false, err
	}
	return before, found, nil
}

func (d *Database) Remove(collection string, where Where) ([]Document, error) {
	match, err := CompileWhere(where)
	if err != nil {
		return nil, err
	}

	var survivors []Document
	err = d.mutate(func() (bool, error) {
		docs, err := d.collection(collection)
		if err != nil {
			return false, err
		}
		// an empty filter removes nothing
		if len(where) == 0 {
			survivors = copyDocuments(docs)
			return false, nil
		}

		kept := make([]Document, 0, len(docs))
		for _, doc := range docs {
			if !match(doc) {
				kept = append(kept, doc)
			}
		}
		d.data[collection] = kept
		survivors = copyDocuments(kept)
		return len(kept) != len(docs), nil
	})
	if err != nil {
		return nil, err
	}
	return survivors, nil
}

func (d *Database) All(collection string) ([]Document, error) {
	docs, err := d.collection(collection)
	if err != nil {
		return nil, err
	}
	return copyDocuments(docs), nil
}

func (d *Database) Snapshot() (map[string][]Document, error) {
	out := make(map[string][]Document, len(d.data))
	for name, docs := range d.data {
		out[name] = copyDocuments(docs)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Query Engine
// --------------------------------------------------------------------------

func (d *Database) Find(collection string, opts FindOptions) ([]Document, error) {
	docs, err := d.collection(collection)
	if err != nil {
		return nil, err
	}
	result, err := query(docs, opts)
	if err != nil {
		return nil, err
	}
	return copyDocuments(result), nil
}

func (d *Database) FindOne(collection string, where Where) (Document, bool, error) {
	docs, err := d.collection(collection)
	if err != nil {
		return nil, false, err
	}
	match, err := CompileWhere(where)
	if err != nil {
		return nil, false, err
	}
	if len(where) == 0 {
		return nil, false, nil
	}

	for _, doc := range docs {
		if match(doc) {
			return copyDocument(doc), true, nil
		}
	}
	return nil, false, nil
}
