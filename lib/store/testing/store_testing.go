package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/roberthgnz/lsdb/lib/store"
)

// StoreFactory creates a fresh, empty store.IStore
type StoreFactory func() store.IStore

// RunIStoreTests runs the contract tests every store.IStore implementation has to pass
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory())
		})

		t.Run("Delete&Has", func(t *testing.T) {
			testDeleteHas(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			if _, err := factory().GetDBInfo(); err != nil {
				t.Errorf("GetDBInfo failed: %v", err)
			}
		})
	})
}

func testSetGet(t *testing.T, s store.IStore) {
	if _, ok, err := s.Get("app"); err != nil || ok {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	snapshot := []byte(`{"users":[{"_id":"abc1234","name":"Ann"}]}`)
	if err := s.Set("app", snapshot); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := s.Get("app")
	if err != nil || !ok {
		t.Fatalf("Expected key to exist, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, snapshot) {
		t.Errorf("Expected %s, got %s", snapshot, value)
	}

	if err := s.Set("app", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _, _ = s.Get("app"); string(value) != `{}` {
		t.Errorf("Expected overwritten value {}, got %s", value)
	}
}

func testSetIfUnset(t *testing.T, s store.IStore) {
	if err := s.SetIfUnset("lock", []byte("first")); err != nil {
		t.Fatalf("SetIfUnset failed: %v", err)
	}
	if err := s.SetIfUnset("lock", []byte("second")); err != nil {
		t.Fatalf("SetIfUnset on existing key should not fail: %v", err)
	}
	if value, _, _ := s.Get("lock"); string(value) != "first" {
		t.Errorf("Expected first, got %s", value)
	}
}

func testDeleteHas(t *testing.T, s store.IStore) {
	if err := s.Set("key", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ok, err := s.Has("key"); err != nil || !ok {
		t.Fatalf("Expected Has to be true, got ok=%v err=%v", ok, err)
	}
	if err := s.Delete("key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, err := s.Has("key"); err != nil || ok {
		t.Errorf("Expected Has to be false after Delete, got ok=%v err=%v", ok, err)
	}
	if err := s.Delete("key"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
}

func testKeys(t *testing.T, s store.IStore) {
	for _, key := range []string{"orders", "app", "users"} {
		if err := s.Set(key, []byte("{}")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if fmt.Sprint(keys) != "[app orders users]" {
		t.Errorf("Expected [app orders users], got %v", keys)
	}
}

func testConcurrent(t *testing.T, s store.IStore) {
	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				key := fmt.Sprintf("w%d-%d", id, i)
				if err := s.Set(key, []byte(key)); err != nil {
					errs <- err
					continue
				}
				if value, ok, err := s.Get(key); err != nil || !ok || string(value) != key {
					errs <- fmt.Errorf("read back %s: ok=%v err=%v value=%s", key, ok, err, value)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
