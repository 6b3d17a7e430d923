package common

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/roberthgnz/lsdb/lib/docdb"
)

func TestParseShard(t *testing.T) {
	tests := []struct {
		def     string
		want    ServerShard
		wantErr bool
	}{
		{def: "100=kv", want: ServerShard{ShardID: 100, Type: ShardTypeKV, Engine: EngineMemory}},
		{def: " 200=lockmgr(raft) ", want: ServerShard{ShardID: 200, Type: ShardTypeLockMgr, Engine: EngineRaft}},
		{def: "300=docdb(sqlite)", want: ServerShard{ShardID: 300, Type: ShardTypeDocDB, Engine: EngineSQLite}},
		{def: "301=docdb(file)", want: ServerShard{ShardID: 301, Type: ShardTypeDocDB, Engine: EngineFile}},
		{def: "300", wantErr: true},
		{def: "x=kv", wantErr: true},
		{def: "1=queue", wantErr: true},
		{def: "1=kv(tape)", wantErr: true},
		{def: "1=kv(memory", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			got, err := ParseShard(tt.def)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseShard failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseShards(t *testing.T) {
	shards, err := ParseShards("100=kv,200=lockmgr,,300=docdb(file)")
	if err != nil {
		t.Fatalf("ParseShards failed: %v", err)
	}
	if len(shards) != 3 {
		t.Errorf("Expected 3 shards, got %d", len(shards))
	}

	if _, err := ParseShards("1=kv,1=docdb"); err == nil {
		t.Error("Expected error for duplicate shard IDs")
	}
	if _, err := ParseShards(""); err == nil {
		t.Error("Expected error for empty shard list")
	}
}

func TestErrorKindsSurviveEncoding(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"Validation", &docdb.ValidationError{Msg: docdb.MsgNotAllStrings}},
		{"Unsupported operator", &docdb.UnsupportedOperatorError{Field: "age", Op: "$regex"}},
		{"Unknown collection", &docdb.UnknownCollectionError{Collection: "users"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), tt.err)
			got := DecodeError(EncodeError(wrapped))
			if diff := cmp.Diff(tt.err, got); diff != "" {
				t.Errorf("Decoded error mismatch (-want +got):\n%s", diff)
			}
		})
	}

	plain := DecodeError("disk full")
	if plain.Error() != "disk full" {
		t.Errorf("Expected plain error message, got %q", plain.Error())
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTUnknown; mt <= MsgTCustom; mt++ {
		data, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("Marshal %d failed: %v", mt, err)
		}
		var back MessageType
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", data, err)
		}
		if back != mt {
			t.Errorf("Expected %s, got %s", mt, back)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"teleport"`), &mt); err == nil {
		t.Error("Expected error for unknown message type")
	}
}

func TestLeaseInMeta(t *testing.T) {
	if got := NewAcquireRequest("job", 1500*time.Millisecond).Lease(); got != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s lease, got %v", got)
	}
	if req := NewAcquireRequest("job", 0); req.Meta != nil || req.Lease() != 0 {
		t.Errorf("Expected no lease, got meta %v", req.Meta)
	}
	req := NewSetEIfUnsetRequest("k", []byte("v"), time.Second)
	if req.MsgType != MsgTKVSetEIfUnset || req.Lease() != time.Second {
		t.Errorf("Unexpected SetEIfUnset request %+v", req)
	}
	if got := (&Message{Meta: []byte("junk")}).Lease(); got != 0 {
		t.Errorf("Expected foreign meta to carry no lease, got %v", got)
	}
}

func TestDocRequestPayload(t *testing.T) {
	where := docdb.Where{docdb.Gt("n", float64(1)), docdb.Lt("n", float64(5))}
	req, err := NewDocRequest(MsgTDOCFind, "shop", "articles", &DocPayload{
		Find: &docdb.FindOptions{Where: where, Sort: &docdb.Sort{Field: "n", Order: docdb.Desc}, Limit: 2},
	})
	if err != nil {
		t.Fatalf("NewDocRequest failed: %v", err)
	}

	payload, err := req.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	want := &docdb.FindOptions{Where: where, Sort: &docdb.Sort{Field: "n", Order: docdb.Desc}, Limit: 2}
	if diff := cmp.Diff(want, payload.Find); diff != "" {
		t.Errorf("Find options mismatch (-want +got):\n%s", diff)
	}

	resp := NewDocResponse(MsgTDOCFind, nil, false, &docdb.UnknownCollectionError{Collection: "articles"})
	var cerr *docdb.UnknownCollectionError
	if !errors.As(DecodeError(resp.Err), &cerr) {
		t.Errorf("Expected unknown collection error, got %q", resp.Err)
	}
}
