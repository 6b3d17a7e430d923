package util

import (
	"bytes"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	entries := []Entry{
		{Key: "users", Value: []byte(`{"users":[]}`), Index: 3},
		{Key: "", Value: nil, Index: 0},
		{Key: "large", Value: bytes.Repeat([]byte{7}, 1<<16), Index: 42},
		{Key: "lsdb/lock/users", Value: []byte("owner"), Index: 43, DeleteAt: 1700000000000000000},
	}

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, entries); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	var got []Entry
	err := ReadSnapshot(&buf, func(e Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i := range entries {
		if got[i].Key != entries[i].Key || got[i].Index != entries[i].Index || got[i].DeleteAt != entries[i].DeleteAt || !bytes.Equal(got[i].Value, entries[i].Value) {
			t.Errorf("Entry %d mismatch: expected %+v, got key=%q index=%d len=%d", i, entries[i].Key, got[i].Key, got[i].Index, len(got[i].Value))
		}
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	err := ReadSnapshot(bytes.NewReader([]byte("NOTASNAPSHOT")), func(Entry) error { return nil })
	if err == nil {
		t.Error("Expected error for invalid magic number")
	}
}

func TestShardIndex(t *testing.T) {
	seed := GenerateSeed()
	for _, key := range []string{"", "a", "users", "a-much-longer-database-name"} {
		idx := ShardIndex(HashString(key, seed), 16)
		if idx < 0 || idx >= 16 {
			t.Errorf("ShardIndex out of range for %q: %d", key, idx)
		}
		if idx != ShardIndex(HashString(key, seed), 16) {
			t.Errorf("ShardIndex not deterministic for %q", key)
		}
	}
}

func TestExpired(t *testing.T) {
	tests := []struct {
		deleteAt, now int64
		expected      bool
	}{
		{deleteAt: 0, now: 1 << 62, expected: false},
		{deleteAt: 100, now: 99, expected: false},
		{deleteAt: 100, now: 100, expected: true},
		{deleteAt: 100, now: 101, expected: true},
	}
	for _, tt := range tests {
		if got := Expired(tt.deleteAt, tt.now); got != tt.expected {
			t.Errorf("Expired(%d, %d) = %v, want %v", tt.deleteAt, tt.now, got, tt.expected)
		}
	}
}
