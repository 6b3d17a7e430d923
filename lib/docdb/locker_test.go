package docdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/roberthgnz/lsdb/lib/lockmgr"
)

func TestOpenRejectsReservedNames(t *testing.T) {
	s := newStore()
	for _, name := range []string{"lsdb/x", "lsdb/lock/x", ReservedPrefix} {
		_, err := Open(s, name)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Open(%q): expected *ValidationError, got %v", name, err)
		}
	}
	if keys, _ := s.Keys(); len(keys) != 0 {
		t.Errorf("Expected rejected names to leave the store untouched, got %v", keys)
	}

	// a database named like the lock of another stays usable
	d, err := Open(s, "x", WithLocker(lockmgr.NewLockManager(s), 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := d.DeclareCollections("c", false); err != nil {
		t.Fatalf("DeclareCollections failed: %v", err)
	}
	if _, err := d.Insert("c", Document{"v": 1}); err != nil {
		t.Errorf("Insert failed: %v", err)
	}
}

func TestLockedHandlesSeeEachOthersWrites(t *testing.T) {
	s := newStore()
	locks := lockmgr.NewLockManager(s)
	a, err := Open(s, "shop", WithLocker(locks, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open a failed: %v", err)
	}
	b, err := Open(s, "shop", WithLocker(locks, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Open b failed: %v", err)
	}

	if err := a.DeclareCollections("items", false); err != nil {
		t.Fatalf("DeclareCollections failed: %v", err)
	}
	// b never declared items itself, the mutation reloads first
	if _, err := b.Insert("items", Document{"src": "b"}); err != nil {
		t.Fatalf("Insert through b failed: %v", err)
	}
	if _, err := a.Insert("items", Document{"src": "a"}); err != nil {
		t.Fatalf("Insert through a failed: %v", err)
	}
	if _, err := b.Remove("items", Where{Eq("src", "missing")}); err != nil {
		t.Fatalf("Remove through b failed: %v", err)
	}

	for name, d := range map[string]*Database{"a": a, "b": b} {
		all, _ := d.All("items")
		var sources []any
		for _, doc := range all {
			sources = append(sources, doc["src"])
		}
		if diff := cmp.Diff([]any{"b", "a"}, sources); diff != "" {
			t.Errorf("Handle %s lost a write (-want +got):\n%s", name, diff)
		}
	}
}

func TestHeldLockBlocksMutations(t *testing.T) {
	s := newStore()
	locks := lockmgr.NewLockManager(s)
	d, err := Open(s, "shop", WithLocker(locks, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ok, owner, err := locks.AcquireLock(lockKey("shop"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireLock failed: ok=%v err=%v", ok, err)
	}

	err = d.DeclareCollections("c", false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the held lock to time out the mutation, got %v", err)
	}
	if n, err := d.Count("c"); err == nil {
		t.Errorf("Expected c to stay undeclared, got %d documents", n)
	}

	if ok, err := locks.ReleaseLock(lockKey("shop"), owner); err != nil || !ok {
		t.Fatalf("ReleaseLock failed: ok=%v err=%v", ok, err)
	}
	if err := d.DeclareCollections("c", false); err != nil {
		t.Errorf("DeclareCollections after release failed: %v", err)
	}
}

func TestFailedMutationReleasesLock(t *testing.T) {
	s := newStore()
	d, err := Open(s, "shop", WithLocker(lockmgr.NewLockManager(s), 50*time.Millisecond))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, err = d.Insert("nope", Document{"v": 1})
	var cerr *UnknownCollectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected *UnknownCollectionError, got %v", err)
	}
	if ok, _ := s.Has(lockKey("shop")); ok {
		t.Error("Expected the lock to be released after the failed mutation")
	}
	if err := d.DeclareCollections("c", false); err != nil {
		t.Errorf("DeclareCollections after a failed mutation: %v", err)
	}
}

func TestAbandonedLockIsTakenOver(t *testing.T) {
	s := newStore()
	locks := lockmgr.NewLockManager(s)
	d, err := Open(s, "shop", WithLocker(locks, time.Second))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// a crashed handle left its lock behind
	if ok, _, err := locks.AcquireLock(lockKey("shop"), 50*time.Millisecond); err != nil || !ok {
		t.Fatalf("AcquireLock failed: ok=%v err=%v", ok, err)
	}

	start := time.Now()
	if err := d.DeclareCollections("c", false); err != nil {
		t.Fatalf("Expected the mutation to wait out the lease, got %v", err)
	}
	if waited := time.Since(start); waited >= time.Second {
		t.Errorf("Expected the lease to end the wait, waited %v", waited)
	}
}
