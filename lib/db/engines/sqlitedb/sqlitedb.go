package sqlitedb

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/util"
)

// sqliteImpl implements db.KVDB on a single SQLite table:
//
//	kv(key TEXT PRIMARY KEY, value BLOB, idx INTEGER, delete_at INTEGER)
//
// delete_at is the end of a lease in unix nanoseconds, 0 for entries without one.
type sqliteImpl struct {
	path      string
	sql       *sql.DB
	currIndex atomic.Uint64
}

// NewSQLiteDB opens (or creates) the SQLite database file at path
func NewSQLiteDB(path string) (db.KVDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps SetIfUnset and Load free of SQLITE_BUSY races
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB,
		idx INTEGER NOT NULL DEFAULT 0,
		delete_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		conn.Close()
		return nil, err
	}
	// files written before leases existed lack the column
	if _, err := conn.Exec("SELECT delete_at FROM kv LIMIT 0"); err != nil {
		if _, err := conn.Exec("ALTER TABLE kv ADD COLUMN delete_at INTEGER NOT NULL DEFAULT 0"); err != nil {
			conn.Close()
			return nil, err
		}
	}

	s := &sqliteImpl{path: path, sql: conn}

	var maxIdx sql.NullInt64
	if err := conn.QueryRow("SELECT MAX(idx) FROM kv").Scan(&maxIdx); err != nil {
		conn.Close()
		return nil, err
	}
	if maxIdx.Valid {
		s.currIndex.Store(uint64(maxIdx.Int64))
	}

	return s, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte, writeIndex uint64) error {
	s.SetWriteIdx(writeIndex)
	_, err := s.sql.Exec(`INSERT INTO kv (key, value, idx) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, idx = excluded.idx, delete_at = 0
		WHERE excluded.idx >= kv.idx`, key, blob(value), int64(writeIndex))
	return err
}

func (s *sqliteImpl) SetIfUnset(key string, value []byte, writeIndex uint64) (bool, error) {
	s.SetWriteIdx(writeIndex)
	res, err := s.sql.Exec(`INSERT INTO kv (key, value, idx) VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING`, key, blob(value), int64(writeIndex))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteImpl) SetEIfUnset(key string, value []byte, writeIndex uint64, now, deleteAt int64) (bool, error) {
	s.SetWriteIdx(writeIndex)
	res, err := s.sql.Exec(`INSERT INTO kv (key, value, idx, delete_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, idx = excluded.idx, delete_at = excluded.delete_at
		WHERE kv.delete_at != 0 AND kv.delete_at <= ?`, key, blob(value), int64(writeIndex), deleteAt, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *sqliteImpl) Delete(key string, writeIndex uint64) error {
	s.SetWriteIdx(writeIndex)
	_, err := s.sql.Exec("DELETE FROM kv WHERE key = ? AND idx <= ?", key, int64(writeIndex))
	return err
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// liveClause filters out entries whose lease ended, it takes the current time as parameter
const liveClause = "(delete_at = 0 OR delete_at > ?)"

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.sql.QueryRow("SELECT value FROM kv WHERE key = ? AND "+liveClause, key, time.Now().UnixNano()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *sqliteImpl) Has(key string) (bool, error) {
	var one int
	err := s.sql.QueryRow("SELECT 1 FROM kv WHERE key = ? AND "+liveClause, key, time.Now().UnixNano()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *sqliteImpl) Keys() ([]string, error) {
	rows, err := s.sql.Query("SELECT key FROM kv WHERE "+liveClause+" ORDER BY key", time.Now().UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Save(w io.Writer) error {
	rows, err := s.sql.Query("SELECT key, value, idx, delete_at FROM kv ORDER BY key")
	if err != nil {
		return err
	}

	var entries []util.Entry
	for rows.Next() {
		var (
			e   util.Entry
			idx int64
		)
		if err := rows.Scan(&e.Key, &e.Value, &idx, &e.DeleteAt); err != nil {
			rows.Close()
			return err
		}
		e.Index = uint64(idx)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	return util.WriteSnapshot(w, entries)
}

func (s *sqliteImpl) Load(r io.Reader) (err error) {
	tx, err := s.sql.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM kv"); err != nil {
		return err
	}

	var maxIndex uint64
	err = util.ReadSnapshot(r, func(e util.Entry) error {
		if e.Index > maxIndex {
			maxIndex = e.Index
		}
		_, err := tx.Exec("INSERT INTO kv (key, value, idx, delete_at) VALUES (?, ?, ?, ?)", e.Key, blob(e.Value), int64(e.Index), e.DeleteAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.currIndex.Store(0)
	s.SetWriteIdx(maxIndex)
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

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var (
		keys int
		size sql.NullInt64
	)
	_ = s.sql.QueryRow("SELECT COUNT(*), SUM(LENGTH(key) + IFNULL(LENGTH(value), 0)) FROM kv").Scan(&keys, &size)

	return db.DatabaseInfo{
		Keys:      keys,
		SizeBytes: int(size.Int64),
		DbType:    db.ImplSQLite,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetIfUnset, db.FeatureGet, db.FeatureDelete,
			db.FeatureHas, db.FeatureKeys, db.FeatureSave, db.FeatureLoad, db.FeatureDurable, db.FeatureSetEIfUnset,
		},
		Metadata: &struct {
			Path              string `json:"path"`
			CurrentWriteIndex uint64 `json:"current_write_index"`
		}{
			Path:              s.path,
			CurrentWriteIndex: s.currIndex.Load(),
		},
	}
}

func (s *sqliteImpl) Close() error {
	return s.sql.Close()
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

func (s *sqliteImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := s.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if s.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (s *sqliteImpl) WriteIdx() uint64 {
	return s.currIndex.Load()
}

// blob makes sure an empty value is stored as an empty blob and not as NULL
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
