package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/roberthgnz/lsdb/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("SetEIfUnset", func(t *testing.T) {
			testSetEIfUnset(t, factory())
		})

		t.Run("LeaseSurvivesSaveLoad", func(t *testing.T) {
			testLeaseSaveLoad(t, factory)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("DocumentSnapshots", func(t *testing.T) {
			testDocumentSnapshots(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustSet(t testing.TB, database db.KVDB, key string, value []byte, idx uint64) {
	t.Helper()
	if err := database.Set(key, value, idx); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value, ok
}

func mustHas(t testing.TB, database db.KVDB, key string) bool {
	t.Helper()
	ok, err := database.Has(key)
	if err != nil {
		t.Fatalf("Has(%q) failed: %v", key, err)
	}
	return ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1, 1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, database, testKey, testValue2, 2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = mustGet(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("caller-owned")
	mustSet(t, database, testKey, input, 3)
	input[0] = 'X'
	result, _ = mustGet(t, database, testKey)
	if !bytes.Equal(result, []byte("caller-owned")) {
		t.Errorf("Set should copy the value, got %s", result)
	}

	if database.WriteIdx() < 3 {
		t.Errorf("Expected write index to be at least 3, got %d", database.WriteIdx())
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet)

	written, err := database.SetIfUnset("lock", []byte("owner-1"), 1)
	if err != nil {
		t.Fatalf("SetIfUnset failed: %v", err)
	}
	if !written {
		t.Errorf("Expected first SetIfUnset to write")
	}

	written, err = database.SetIfUnset("lock", []byte("owner-2"), 2)
	if err != nil {
		t.Fatalf("SetIfUnset failed: %v", err)
	}
	if written {
		t.Errorf("Expected second SetIfUnset not to write")
	}

	value, _ := mustGet(t, database, "lock")
	if !bytes.Equal(value, []byte("owner-1")) {
		t.Errorf("Expected value owner-1, got %s", value)
	}
}

func testSetEIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetEIfUnset|db.FeatureGet|db.FeatureKeys)

	now := time.Now().UnixNano()
	lease := int64(time.Hour)

	written, err := database.SetEIfUnset("lock", []byte("owner-1"), 1, now, now+lease)
	if err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}
	if !written {
		t.Fatalf("Expected first SetEIfUnset to write")
	}

	// the lease is still running
	written, err = database.SetEIfUnset("lock", []byte("owner-2"), 2, now+lease-1, now+2*lease)
	if err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}
	if written {
		t.Errorf("Expected SetEIfUnset on a leased key not to write")
	}
	if value, _ := mustGet(t, database, "lock"); !bytes.Equal(value, []byte("owner-1")) {
		t.Errorf("Expected value owner-1, got %s", value)
	}

	// the lease ended at now+lease
	written, err = database.SetEIfUnset("lock", []byte("owner-3"), 3, now+lease, now+2*lease)
	if err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}
	if !written {
		t.Errorf("Expected SetEIfUnset to take over an ended lease")
	}
	if value, _ := mustGet(t, database, "lock"); !bytes.Equal(value, []byte("owner-3")) {
		t.Errorf("Expected value owner-3, got %s", value)
	}

	// an entry whose lease is over is invisible to reads
	if _, err := database.SetEIfUnset("gone", []byte("x"), 4, now-2, now-1); err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}
	if _, ok := mustGet(t, database, "gone"); ok {
		t.Errorf("Expected expired entry to be hidden from Get")
	}
	if mustHas(t, database, "gone") {
		t.Errorf("Expected expired entry to be hidden from Has")
	}
	keys, err := database.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "lock" {
		t.Errorf("Expected keys [lock], got %v", keys)
	}

	// Set replaces a leased entry and drops the lease
	mustSet(t, database, "gone", []byte("back"), 5)
	if value, ok := mustGet(t, database, "gone"); !ok || string(value) != "back" {
		t.Errorf("Expected Set to revive the key, got %q (ok=%v)", value, ok)
	}
}

func testLeaseSaveLoad(t *testing.T, factory DBFactory) {
	src := factory()
	defer src.Close()
	requireFeature(t, src, db.FeatureSetEIfUnset|db.FeatureSave|db.FeatureLoad)

	now := time.Now().UnixNano()
	if _, err := src.SetEIfUnset("lock", []byte("owner"), 1, now, now+int64(time.Hour)); err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}

	var buf bytes.Buffer
	if err := src.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	dst := factory()
	defer dst.Close()
	if err := dst.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	written, err := dst.SetEIfUnset("lock", []byte("other"), 2, now+int64(time.Minute), now+int64(2*time.Hour))
	if err != nil {
		t.Fatalf("SetEIfUnset failed: %v", err)
	}
	if written {
		t.Errorf("Expected the lease to survive Save/Load")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureGet)

	mustSet(t, database, "delete-key", []byte("value"), 1)
	if err := database.Delete("delete-key", 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, exists := mustGet(t, database, "delete-key"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}

	if err := database.Delete("never-set", 3); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}

	mustSet(t, database, "delete-key", []byte("again"), 4)
	if value, exists := mustGet(t, database, "delete-key"); !exists || !bytes.Equal(value, []byte("again")) {
		t.Errorf("Expected key to be settable after Delete, got %s", value)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	if mustHas(t, database, "has-key") {
		t.Errorf("Expected Has to be false before Set")
	}
	mustSet(t, database, "has-key", []byte{}, 1)
	if !mustHas(t, database, "has-key") {
		t.Errorf("Expected Has to be true after Set with empty value")
	}
	if err := database.Delete("has-key", 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mustHas(t, database, "has-key") {
		t.Errorf("Expected Has to be false after Delete")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureKeys)

	for i, key := range []string{"gamma", "alpha", "beta"} {
		mustSet(t, database, key, []byte("{}"), uint64(i+1))
	}

	keys, err := database.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expected := []string{"alpha", "beta", "gamma"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected keys %v, got %v", expected, keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("Expected keys %v, got %v", expected, keys)
			break
		}
	}

	if info := database.GetInfo(); info.Keys != 3 {
		t.Errorf("Expected info to report 3 keys, got %d", info.Keys)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 500
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		mustSet(t, database, key, value, uint64(i+1))
	}

	// stale content must be replaced by Load
	mustSet(t, database2, "leftover", []byte("x"), 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		actualValue, exists := mustGet(t, database2, originalKeys[i])
		if !exists {
			t.Errorf("Key %s not found after Load", originalKeys[i])
			continue
		}
		if !bytes.Equal(actualValue, originalValues[i]) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", originalKeys[i], originalValues[i], actualValue)
		}
	}

	if _, exists := mustGet(t, database2, "leftover"); exists {
		t.Errorf("Expected Load to replace existing entries")
	}
	if database2.WriteIdx() < uint64(numEntries) {
		t.Errorf("Expected write index >= %d after Load, got %d", numEntries, database2.WriteIdx())
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	mustSet(t, database, "", emptyKeyValue, 1)
	if result, exists := mustGet(t, database, ""); !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	mustSet(t, database, "nil-value-key", nil, 2)
	if result, exists := mustGet(t, database, "nil-value-key"); !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	for _, key := range []string{"../escape", "with/slash", "ünïcödé", "white space"} {
		mustSet(t, database, key, []byte(key), 3)
		if result, exists := mustGet(t, database, key); !exists || !bytes.Equal(result, []byte(key)) {
			t.Errorf("Key %q did not round trip, got %q (exists=%v)", key, result, exists)
		}
	}

	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustSet(t, database, "large-value-key", largeValue, 4)
	if result, exists := mustGet(t, database, "large-value-key"); !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (len %d vs %d)", len(result), len(largeValue))
	}
}

// testDocumentSnapshots writes values shaped like the JSON snapshots a document database stores
func testDocumentSnapshots(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	snapshots := []string{
		`{}`,
		`{"users":[]}`,
		`{"users":[{"_id":"a1b2c3d","name":"Ann","age":31}]}`,
		`{"users":[],"orders":[{"_id":"zz9x8y7","items":[1,2,3],"meta":{"paid":true}}]}`,
	}
	for i, snapshot := range snapshots {
		mustSet(t, database, "app", []byte(snapshot), uint64(i+1))
		result, exists := mustGet(t, database, "app")
		if !exists || string(result) != snapshot {
			t.Errorf("Snapshot %d mismatch: expected %s, got %s", i, snapshot, result)
		}
	}
}

func testConcurrentUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	numWorkers := 8
	opsPerWorker := 200

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	errs := make(chan error, numWorkers*opsPerWorker)

	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerID, i%20)
				switch i % 4 {
				case 0, 1:
					if err := database.Set(key, []byte(fmt.Sprintf("v%d", i)), uint64(i+1)); err != nil {
						errs <- err
					}
				case 2:
					if _, _, err := database.Get(key); err != nil {
						errs <- err
					}
				case 3:
					if err := database.Delete(fmt.Sprintf("worker-%d-key-%d", workerID, (i+10)%20), uint64(i+1)); err != nil {
						errs <- err
					}
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	// key-0 of every worker is written but never targeted by a delete
	for w := 0; w < numWorkers; w++ {
		key := fmt.Sprintf("worker-%d-key-0", w)
		if _, exists := mustGet(t, database, key); !exists {
			t.Errorf("Expected %s to exist after concurrent usage", key)
		}
	}
}
