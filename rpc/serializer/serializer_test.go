package serializer

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/roberthgnz/lsdb/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		{
			MsgType: common.MsgTKVSet,
			Key:     "test-key",
			Value:   []byte("test-value"),
		},
		{
			MsgType: common.MsgTKVGet,
			Key:     "test-key",
			Value:   []byte("test-value"),
			Ok:      true,
		},
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},
		{
			MsgType:    common.MsgTDOCFind,
			Database:   "shop",
			Collection: "articles",
			Payload:    json.RawMessage(`{"find":{"where":{"category":{"$eq":"Drinks"}},"limit":10}}`),
		},
		{
			MsgType:    common.MsgTDOCUpdate,
			Key:        "k",
			Value:      []byte("v"),
			Database:   "shop",
			Collection: "articles",
			Payload:    json.RawMessage(`{"document":{"_id":"abc1234","foo":"bar"}}`),
			Ok:         true,
			Err:        "validation:value must be a string",
			Meta:       []byte("test-meta-data"),
		},
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
				}
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

func TestDeserializeOverwritesReusedMessage(t *testing.T) {
	names := map[string]string{"JSON": "json", "GOB": "gob", "Binary": "binary"}
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()
			if got := serializer.Name(); got != names[name] {
				t.Errorf("Expected name %q, got %q", names[name], got)
			}

			full, err := serializer.Serialize(testMessages()[5])
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}
			empty, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var msg common.Message
			if err := serializer.Deserialize(full, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if err := serializer.Deserialize(empty, &msg); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTSuccess}) {
				t.Errorf("Fields of the previous message survived: %+v", msg)
			}
		})
	}
}

func TestBinaryKeepsEmptySlices(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{MsgType: common.MsgTKVSet, Key: "k", Value: []byte{}, Meta: []byte{}}
	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if result.Value == nil || len(result.Value) != 0 {
		t.Errorf("Expected empty non-nil value, got %#v", result.Value)
	}
	if result.Meta == nil || len(result.Meta) != 0 {
		t.Errorf("Expected empty non-nil meta, got %#v", result.Meta)
	}
	if result.Payload != nil {
		t.Errorf("Expected absent payload to stay nil, got %#v", result.Payload)
	}
}

func TestBinaryDoesNotAliasInput(t *testing.T) {
	serializer := NewBinarySerializer()
	data, _ := serializer.Serialize(common.Message{MsgType: common.MsgTKVSet, Value: []byte("abc")})

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if string(result.Value) != "abc" {
		t.Errorf("Expected value to survive reuse of the input buffer, got %q", result.Value)
	}
}

func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{name: "Empty data", data: []byte{}, expectError: true},
		{name: "Too short header", data: []byte{1}, expectError: true},
		{name: "Valid header only", data: []byte{1, 0}, expectError: false},
		{name: "Ok flag only", data: []byte{1, hasOk}, expectError: false},
		{name: "Invalid length for key", data: []byte{1, hasKey, 0, 0, 0, 5, 'a', 'b', 'c'}, expectError: true},
		{name: "Invalid length for value", data: []byte{1, hasValue, 0, 0, 0, 10}, expectError: true},
		{name: "Truncated length", data: []byte{1, hasPayload, 0, 0}, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

func BenchmarkSerializers(b *testing.B) {
	msg := testMessages()[4]
	for name, factory := range testSerializers {
		serializer := factory()
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatal(err)
				}
				var out common.Message
				if err := serializer.Deserialize(data, &out); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
