package dstore

import (
	"bytes"
	"testing"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/lib/store/dstore/internal"
)

func newTestMachine() sm.IConcurrentStateMachine {
	return CreateStateMachineFactory(func() db.KVDB { return memdb.NewMemDB(nil) })(1, 1)
}

func entry(index uint64, cmd internal.Command) sm.Entry {
	return sm.Entry{Index: index, Cmd: cmd.Serialize()}
}

func TestStateMachineUpdateAndLookup(t *testing.T) {
	fsm := newTestMachine()
	defer fsm.Close()

	entries, err := fsm.Update([]sm.Entry{
		entry(1, internal.Command{Type: internal.CommandTSet, Key: "app", Value: []byte(`{"users":[]}`)}),
		entry(2, internal.Command{Type: internal.CommandTSetIfUnset, Key: "app", Value: []byte(`{}`)}),
		entry(3, internal.Command{Type: internal.CommandTSet, Key: "tmp", Value: []byte("x")}),
		entry(4, internal.Command{Type: internal.CommandTDelete, Key: "tmp"}),
		{Index: 5},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	for i, e := range entries[:4] {
		if e.Result.Value != uint64(store.RetCSuccess) {
			t.Errorf("Entry %d: expected success, got %d (%s)", i, e.Result.Value, e.Result.Data)
		}
	}
	if entries[4].Result.Value != uint64(store.RetCInvalidOperation) {
		t.Errorf("Expected empty command to be rejected, got %d", entries[4].Result.Value)
	}

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "app"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	qr := res.(internal.QueryResult)
	if !qr.Ok || string(qr.Value) != `{"users":[]}` {
		t.Errorf("Expected SetIfUnset to keep the first value, got %s (ok=%v)", qr.Value, qr.Ok)
	}

	has, _ := fsm.Lookup(internal.Query{Type: internal.QueryTHas, Key: "tmp"})
	if has.(bool) {
		t.Errorf("Expected tmp to be deleted")
	}

	keys, _ := fsm.Lookup(internal.Query{Type: internal.QueryTKeys})
	if k := keys.([]string); len(k) != 1 || k[0] != "app" {
		t.Errorf("Expected keys [app], got %v", k)
	}

	if _, err := fsm.Lookup("not a query"); err == nil {
		t.Errorf("Expected error for invalid query type")
	}
}

func TestStateMachineSnapshot(t *testing.T) {
	src := newTestMachine()
	dst := newTestMachine()
	defer src.Close()
	defer dst.Close()

	_, _ = src.Update([]sm.Entry{
		entry(1, internal.Command{Type: internal.CommandTSet, Key: "app", Value: []byte(`{"a":[]}`)}),
	})

	var buf bytes.Buffer
	if err := src.SaveSnapshot(nil, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := dst.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot failed: %v", err)
	}

	res, _ := dst.Lookup(internal.Query{Type: internal.QueryTGet, Key: "app"})
	if qr := res.(internal.QueryResult); string(qr.Value) != `{"a":[]}` {
		t.Errorf("Expected recovered value, got %s", qr.Value)
	}
}
