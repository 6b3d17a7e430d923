package docdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/store"
	"github.com/roberthgnz/lsdb/lib/store/lstore"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newStore() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
}

// sequentialIDs returns a generator producing id-1, id-2, ...
func sequentialIDs() IDGenerator {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("id-%d", n), nil
	}
}

func openTestDB(t *testing.T, collections ...string) *Database {
	t.Helper()
	d, err := Open(newStore(), "test", WithIDGenerator(sequentialIDs()))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(collections) > 0 {
		if err := d.DeclareCollections(collections, false); err != nil {
			t.Fatalf("DeclareCollections failed: %v", err)
		}
	}
	return d
}

func mustInsert(t *testing.T, d *Database, collection string, docs ...Document) []Document {
	t.Helper()
	stored, err := d.InsertMany(collection, docs)
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}
	return stored
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

// --------------------------------------------------------------------------
// Collection Store
// --------------------------------------------------------------------------

func TestOpenCreatesEmptyDatabase(t *testing.T) {
	s := newStore()
	d, err := Open(s, "fresh")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	raw, ok, err := s.Get("fresh")
	if err != nil || !ok || string(raw) != "{}" {
		t.Errorf("Expected {} to be stored under the database name, got %q (ok=%v, err=%v)", raw, ok, err)
	}

	snapshot, _ := d.Snapshot()
	if len(snapshot) != 0 {
		t.Errorf("Expected no collections, got %v", snapshot)
	}

	// a second Open must not reset the data
	_ = d.DeclareCollections("users", false)
	if _, err := Open(s, "fresh"); err != nil {
		t.Fatalf("Second Open failed: %v", err)
	}
	raw, _, _ = s.Get("fresh")
	if string(raw) != `{"users":[]}` {
		t.Errorf("Expected existing data to survive Open, got %s", raw)
	}
}

func TestOpenRejectsMalformedSnapshot(t *testing.T) {
	s := newStore()
	_ = s.Set("broken", []byte("not json"))
	if _, err := Open(s, "broken"); err == nil {
		t.Error("Expected error for malformed snapshot")
	}
}

func TestDeclareCollections(t *testing.T) {
	tests := []struct {
		name    string
		names   any
		wantMsg string
		want    []string
	}{
		{name: "Single string", names: "users", want: []string{"users"}},
		{name: "String slice", names: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "Decoded JSON array", names: []any{"a", "b"}, want: []string{"a", "b"}},
		{name: "Number", names: 42, wantMsg: MsgNotAString},
		{name: "Nil", names: nil, wantMsg: MsgNotAString},
		{name: "Mixed array", names: []any{"a", 1}, wantMsg: MsgNotAllStrings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openTestDB(t)
			err := d.DeclareCollections(tt.names, false)

			if tt.wantMsg != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected *ValidationError, got %v", err)
				}
				if verr.Msg != tt.wantMsg {
					t.Errorf("Expected message %q, got %q", tt.wantMsg, verr.Msg)
				}
				return
			}

			if err != nil {
				t.Fatalf("DeclareCollections failed: %v", err)
			}
			for _, name := range tt.want {
				if n, err := d.Count(name); err != nil || n != 0 {
					t.Errorf("Expected empty collection %s, got n=%d err=%v", name, n, err)
				}
			}
		})
	}
}

func TestDeclareIsIdempotentAndReplaceEmpties(t *testing.T) {
	d := openTestDB(t, "c")
	mustInsert(t, d, "c", Document{"a": 1}, Document{"a": 2})

	if err := d.DeclareCollections([]string{"c"}, false); err != nil {
		t.Fatalf("DeclareCollections failed: %v", err)
	}
	if n, _ := d.Count("c"); n != 2 {
		t.Errorf("Expected redeclare to keep 2 documents, got %d", n)
	}

	if err := d.DeclareCollections([]string{"c"}, true); err != nil {
		t.Fatalf("DeclareCollections failed: %v", err)
	}
	if n, _ := d.Count("c"); n != 0 {
		t.Errorf("Expected replace to empty the collection, got %d", n)
	}
}

func TestUnknownCollection(t *testing.T) {
	d := openTestDB(t)

	checks := map[string]error{}
	_, checks["Count"] = d.Count("nope")
	_, checks["Find"] = d.Find("nope", FindOptions{})
	_, _, checks["FindOne"] = d.FindOne("nope", Where{Eq("a", 1)})
	_, checks["Insert"] = d.Insert("nope", Document{})
	_, _, checks["Update"] = d.Update("nope", Match{Field: "a", Value: 1}, Document{})
	_, checks["Remove"] = d.Remove("nope", Where{Eq("a", 1)})
	_, checks["All"] = d.All("nope")

	for op, err := range checks {
		var uerr *UnknownCollectionError
		if !errors.As(err, &uerr) || uerr.Collection != "nope" {
			t.Errorf("%s: expected *UnknownCollectionError, got %v", op, err)
		}
	}
}

func TestInsert(t *testing.T) {
	d, err := Open(newStore(), "test")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = d.DeclareCollections("c", false)

	input := Document{"name": "Ann", "_id": "caller-chosen", "tags": []string{"x"}}
	stored, err := d.Insert("c", input)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	id := stored.ID()
	if len(id) != idLength || id == "caller-chosen" {
		t.Errorf("Expected a fresh 7 character id, got %q", id)
	}
	if diff := cmp.Diff(Document{"_id": id, "name": "Ann", "tags": []any{"x"}}, stored); diff != "" {
		t.Errorf("Stored document mismatch (-want +got):\n%s", diff)
	}

	// the returned document is a copy
	stored["name"] = "changed"
	all, _ := d.All("c")
	if all[0]["name"] != "Ann" {
		t.Errorf("Mutating the returned document changed the database")
	}

	found, _ := d.Find("c", FindOptions{Where: Where{Eq(IDField, id)}})
	if len(found) != 1 || found[0].ID() != id {
		t.Errorf("Expected to find exactly the inserted document, got %v", found)
	}
}

func TestInsertManyKeepsOrderAndUniqueIDs(t *testing.T) {
	d, _ := Open(newStore(), "test")
	_ = d.DeclareCollections("c", false)

	docs := make([]Document, 200)
	for i := range docs {
		docs[i] = Document{"n": i}
	}
	stored, err := d.InsertMany("c", docs)
	if err != nil {
		t.Fatalf("InsertMany failed: %v", err)
	}

	seen := map[string]bool{}
	for i, doc := range stored {
		if doc["n"] != float64(i) {
			t.Errorf("Expected document %d in input order, got %v", i, doc["n"])
		}
		if seen[doc.ID()] {
			t.Errorf("Duplicate id %s", doc.ID())
		}
		seen[doc.ID()] = true
	}

	if n, _ := d.Count("c"); n != 200 {
		t.Errorf("Expected 200 documents, got %d", n)
	}
}

func TestInsertRegeneratesCollidingIDs(t *testing.T) {
	calls := 0
	gen := func() (string, error) {
		calls++
		if calls <= 3 {
			return "same", nil
		}
		return fmt.Sprintf("other-%d", calls), nil
	}
	d, _ := Open(newStore(), "test", WithIDGenerator(gen))
	_ = d.DeclareCollections("c", false)

	stored := mustInsert(t, d, "c", Document{}, Document{})
	if stored[0].ID() != "same" || stored[1].ID() != "other-4" {
		t.Errorf("Expected ids [same other-4], got %v", ids(stored))
	}
}

func TestInsertRejectsNonJSONValues(t *testing.T) {
	d := openTestDB(t, "c")
	_, err := d.Insert("c", Document{"fn": func() {}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected *ValidationError, got %v", err)
	}
	if n, _ := d.Count("c"); n != 0 {
		t.Errorf("Expected nothing to be inserted, got %d", n)
	}
}

func TestUpdate(t *testing.T) {
	d := openTestDB(t, "c")
	mustInsert(t, d, "c",
		Document{"foo": "bar", "keep": true},
		Document{"foo": "bar", "second": true},
	)

	before, found, err := d.Update("c", Match{Field: "foo", Value: "bar"}, Document{"foo": "newBar", "added": 1, "_id": "hijack"})
	if err != nil || !found {
		t.Fatalf("Update failed: found=%v err=%v", found, err)
	}
	if diff := cmp.Diff(Document{"_id": "id-1", "foo": "bar", "keep": true}, before); diff != "" {
		t.Errorf("Pre-image mismatch (-want +got):\n%s", diff)
	}

	all, _ := d.All("c")
	want := []Document{
		{"_id": "id-1", "foo": "newBar", "keep": true, "added": float64(1)},
		{"_id": "id-2", "foo": "bar", "second": true},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("Collection mismatch after update (-want +got):\n%s", diff)
	}

	before, found, err = d.Update("c", Match{Field: "foo", Value: "missing"}, Document{"x": 1})
	if err != nil || found || before != nil {
		t.Errorf("Expected no match, got before=%v found=%v err=%v", before, found, err)
	}
}

func TestUpdateMatchesNumbersAcrossTypes(t *testing.T) {
	d := openTestDB(t, "c")
	mustInsert(t, d, "c", Document{"n": 3})

	_, found, err := d.Update("c", Match{Field: "n", Value: int64(3)}, Document{"hit": true})
	if err != nil || !found {
		t.Fatalf("Expected int64 match on stored number, found=%v err=%v", found, err)
	}
}

func TestRemove(t *testing.T) {
	d := openTestDB(t, "c")
	mustInsert(t, d, "c", Document{"n": 1}, Document{"n": 2}, Document{"n": 3}, Document{"n": 4})

	survivors, err := d.Remove("c", Where{Gte("n", 3)})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if diff := cmp.Diff([]string{"id-1", "id-2"}, ids(survivors)); diff != "" {
		t.Errorf("Survivors mismatch (-want +got):\n%s", diff)
	}
	if n, _ := d.Count("c"); n != 2 {
		t.Errorf("Expected count 2, got %d", n)
	}

	survivors, err = d.Remove("c", nil)
	if err != nil || len(survivors) != 2 {
		t.Errorf("Expected empty filter to remove nothing, got %v (err=%v)", ids(survivors), err)
	}

	_, err = d.Remove("c", Where{{Field: "n", Op: "$bogus", Value: 1}})
	var uerr *UnsupportedOperatorError
	if !errors.As(err, &uerr) {
		t.Errorf("Expected *UnsupportedOperatorError, got %v", err)
	}
}

func TestMutationsArePersisted(t *testing.T) {
	s := newStore()
	d, _ := Open(s, "shared", WithIDGenerator(sequentialIDs()))
	_ = d.DeclareCollections("c", false)
	mustInsert(t, d, "c", Document{"v": 1})
	_, _, _ = d.Update("c", Match{Field: "v", Value: 1}, Document{"v": 2})

	other, err := Open(s, "shared")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	all, _ := other.All("c")
	if diff := cmp.Diff([]Document{{"_id": "id-1", "v": float64(2)}}, all); diff != "" {
		t.Errorf("Second handle sees stale data (-want +got):\n%s", diff)
	}

	// All and Snapshot agree with Count
	snapshot, _ := other.Snapshot()
	if n, _ := other.Count("c"); n != len(snapshot["c"]) {
		t.Errorf("Count %d does not match snapshot length %d", n, len(snapshot["c"]))
	}
}

// failingStore fails every Set after failAfter successful writes
type failingStore struct {
	store.IStore
	failAfter int
}

func (f *failingStore) Set(key string, value []byte) error {
	if f.failAfter <= 0 {
		return store.NewError(store.RetCInternalError, "disk full")
	}
	f.failAfter--
	return f.IStore.Set(key, value)
}

func TestPersistFailureRollsBack(t *testing.T) {
	fs := &failingStore{IStore: newStore(), failAfter: 1}
	d, err := Open(fs, "test")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := d.DeclareCollections("c", false); err != nil {
		t.Fatalf("DeclareCollections failed: %v", err)
	}

	_, err = d.Insert("c", Document{"a": 1})
	var serr *store.Error
	if !errors.As(err, &serr) {
		t.Fatalf("Expected wrapped *store.Error, got %v", err)
	}
	if n, _ := d.Count("c"); n != 0 {
		t.Errorf("Expected rollback to the persisted state, got %d documents", n)
	}
}

// --------------------------------------------------------------------------
// Example scenarios
// --------------------------------------------------------------------------

func TestScenarios(t *testing.T) {
	t.Run("FindByCategory", func(t *testing.T) {
		d := openTestDB(t, "articles")
		stored := mustInsert(t, d, "articles", Document{"title": "Coffee Guide", "category": "Drinks"})

		found, err := d.Find("articles", FindOptions{Where: Where{Eq("category", "Drinks")}})
		if err != nil {
			t.Fatalf("Find failed: %v", err)
		}
		if diff := cmp.Diff(stored, found); diff != "" {
			t.Errorf("Find mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("GreaterThan", func(t *testing.T) {
		d := openTestDB(t, "c")
		mustInsert(t, d, "c", Document{"number": 20}, Document{"number": 50})

		found, _ := d.Find("c", FindOptions{Where: Where{Gt("number", 20)}})
		if len(found) != 1 || found[0]["number"] != float64(50) {
			t.Errorf("Expected only the 50 document, got %v", found)
		}
	})

	t.Run("MembershipOnLists", func(t *testing.T) {
		d := openTestDB(t, "c")
		mustInsert(t, d, "c", Document{"food": []string{"Pizza", "Cheese"}})

		in, _ := d.Find("c", FindOptions{Where: Where{In("food", "Pizza")}})
		if len(in) != 1 {
			t.Errorf("Expected $in to match, got %v", in)
		}
		nin, _ := d.Find("c", FindOptions{Where: Where{Nin("food", "Pizza")}})
		if len(nin) != 0 {
			t.Errorf("Expected $nin to exclude the document, got %v", nin)
		}
	})

	t.Run("UpdateKeepsID", func(t *testing.T) {
		d := openTestDB(t, "c")
		stored := mustInsert(t, d, "c", Document{"foo": "bar"})

		_, _, _ = d.Update("c", Match{Field: "foo", Value: "bar"}, Document{"foo": "newBar"})
		all, _ := d.All("c")
		if all[0]["foo"] != "newBar" || all[0].ID() != stored[0].ID() {
			t.Errorf("Expected foo=newBar with id %s, got %v", stored[0].ID(), all[0])
		}
	})

	t.Run("RemoveByID", func(t *testing.T) {
		d := openTestDB(t, "c")
		stored := mustInsert(t, d, "c", Document{"a": 1}, Document{"a": 2})
		x := stored[0].ID()

		_, _ = d.Remove("c", Where{Eq(IDField, x)})
		if n, _ := d.Count("c"); n != 1 {
			t.Errorf("Expected count to drop by one, got %d", n)
		}
		if left, _ := d.Find("c", FindOptions{Where: Where{Eq(IDField, x)}}); len(left) != 0 {
			t.Errorf("Expected no document with id %s, got %v", x, left)
		}
	})
}
