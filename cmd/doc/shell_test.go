package doc

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/roberthgnz/lsdb/cmd/util"
	"github.com/roberthgnz/lsdb/lib/db"
	"github.com/roberthgnz/lsdb/lib/db/engines/memdb"
	"github.com/roberthgnz/lsdb/lib/docdb"
	"github.com/roberthgnz/lsdb/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	s := lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
	d, err := docdb.Open(s, "shop")
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return newShell(d, out, false), out
}

// run executes line and returns what it printed
func run(t *testing.T, sh *shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	require.NoError(t, sh.exec(line), line)
	return strings.TrimSpace(out.String())
}

func names(t *testing.T, output string) []string {
	t.Helper()
	var docs []docdb.Document
	require.NoError(t, json.Unmarshal([]byte(output), &docs), output)
	var got []string
	for _, d := range docs {
		got = append(got, d["name"].(string))
	}
	return got
}

func TestShellSession(t *testing.T) {
	sh, out := newTestShell(t)

	assert.Equal(t, "ok", run(t, sh, out, `declare articles users`))
	assert.Equal(t, "articles (0)\nusers (0)", run(t, sh, out, `collections`))

	run(t, sh, out, `insertmany articles [
		{"name": "Cola", "category": "Drinks", "price": 2.5},
		{"name": "Chips", "category": "Snacks", "price": 1.5},
		{"name": "Water", "category": "Drinks", "price": 1},
	]`)
	assert.Equal(t, "3", run(t, sh, out, `count articles`))

	got := names(t, run(t, sh, out, `find articles {"category": "Drinks"} {"sort": {"field": "price", "order": "asc"}}`))
	if diff := cmp.Diff([]string{"Water", "Cola"}, got); diff != "" {
		t.Errorf("find mismatch (-want +got):\n%s", diff)
	}

	got = names(t, run(t, sh, out, `find articles {} {"skip": 1, "limit": 1}`))
	assert.Equal(t, []string{"Chips"}, got)

	assert.Contains(t, run(t, sh, out, `findone articles {"price": {"$gt": 2}}`), `"Cola"`)
	assert.Equal(t, "null", run(t, sh, out, `findone articles {"name": "Beer"}`))

	before := run(t, sh, out, `update articles {"name": "Chips"} {"price": 2}`)
	assert.Contains(t, before, `"price": 1.5`)
	assert.Equal(t, "null", run(t, sh, out, `update articles {"name": "Beer"} {"price": 2}`))

	stored := run(t, sh, out, `insert users {"name": "Ann", /* admin */ "tags": ["admin", "dev"]}`)
	assert.Contains(t, stored, `"_id"`)

	// loose $in matches substrings, strict compares by equality
	assert.Equal(t, []string{"Ann"}, names(t, run(t, sh, out, `find users {"tags": {"$in": ["adm"]}}`)))
	assert.Equal(t, "strict=true", run(t, sh, out, `strict on`))
	assert.Empty(t, names(t, run(t, sh, out, `find users {"tags": {"$in": ["adm"]}}`)))

	removed := names(t, run(t, sh, out, `remove articles {"category": "Drinks"}`))
	assert.ElementsMatch(t, []string{"Cola", "Water"}, removed)
	assert.Equal(t, []string{"Chips"}, names(t, run(t, sh, out, `all articles`)))

	var snapshot map[string][]docdb.Document
	require.NoError(t, json.Unmarshal([]byte(run(t, sh, out, `dump`)), &snapshot))
	assert.Len(t, snapshot["articles"], 1)
	assert.Len(t, snapshot["users"], 1)

	assert.Equal(t, "ok", run(t, sh, out, `declare -r ["articles"]`))
	assert.Equal(t, "0", run(t, sh, out, `count articles`))
}

func TestShellErrors(t *testing.T) {
	sh, _ := newTestShell(t)
	require.NoError(t, sh.exec(`declare articles`))

	tests := []struct {
		name string
		line string
		want any
	}{
		{"unknown collection", `all orders`, &docdb.UnknownCollectionError{}},
		{"unsupported operator", `find articles {"a": {"$regex": "x"}}`, &docdb.UnsupportedOperatorError{}},
		{"invalid names", `declare ["a", 1]`, &docdb.ValidationError{}},
		{"match with two fields", `update articles {"a": 1, "b": 2} {"c": 3}`, &docdb.ValidationError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sh.exec(tt.line)
			require.Error(t, err)
			switch tt.want.(type) {
			case *docdb.UnknownCollectionError:
				var e *docdb.UnknownCollectionError
				assert.True(t, errors.As(err, &e), "got %v", err)
			case *docdb.UnsupportedOperatorError:
				var e *docdb.UnsupportedOperatorError
				assert.True(t, errors.As(err, &e), "got %v", err)
			case *docdb.ValidationError:
				var e *docdb.ValidationError
				assert.True(t, errors.As(err, &e), "got %v", err)
			}
		})
	}

	for _, line := range []string{`frobnicate`, `count`, `insert articles`, `insert articles {"a":`, `strict maybe`, `declare`} {
		assert.Error(t, sh.exec(line), line)
	}
	assert.ErrorIs(t, sh.exec("exit"), errExit)
}

func TestSplitJSONValues(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{``, nil},
		{`{"a": 1}`, []string{`{"a": 1}`}},
		{`{"a": "}"}  {"b": [1, 2]}`, []string{`{"a": "}"}`, `{"b": [1, 2]}`}},
		{`[{"a": 1,},] 42`, []string{`[{"a": 1 }]`, `42`}},
		{`{"a": "\"{"}`, []string{`{"a": "\"{"}`}},
		{`{"a":1 /* } */}`, []string{`{"a": 1}`}},
		{"{\"a\": 1, // ]}\n\"b\": 2}", []string{`{"a": 1, "b": 2}`}},
		{`/* lead */ {"a": "/*"} /* mid */ [2]`, []string{`{"a": "/*"}`, `[2]`}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := splitJSONValues(tt.in)
			require.NoError(t, err)
			if len(tt.want) != len(got) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				assert.JSONEq(t, tt.want[i], got[i])
			}
		})
	}

	for _, in := range []string{`{"a": 1`, `{"a": 1 /* }`, `/* {"a": 1}`} {
		_, err := splitJSONValues(in)
		assert.Error(t, err, in)
	}
}

func TestPerfBenchmarks(t *testing.T) {
	s := lstore.NewLocalStore(func() db.KVDB { return memdb.NewMemDB(nil) })
	d, err := docdb.Open(s, "perf")
	require.NoError(t, err)

	// a local database is not safe for concurrent use, so a single worker
	results, err := util.RunBenchmarks(perfBenchmarks(d, "__perf", 20), util.PerfOptions{Threads: 1, Ops: 20})
	require.NoError(t, err)

	for _, r := range results {
		assert.Zero(t, r.Errors, r.Name)
		assert.EqualValues(t, 20, r.Ops, r.Name)
	}

	n, err := d.Count("__perf")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "update resets the scratch collection")
}
