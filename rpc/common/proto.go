package common

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Key-value and lock fields
	Key   string `json:"key,omitempty"`   // Used for: Set, Get, Has, Delete, Acquire, Release
	Value []byte `json:"value,omitempty"` // Used for: Set (request), Get (response), Acquire (response), Release (request)

	// Document fields
	Database   string          `json:"database,omitempty"`   // Used for: all document operations
	Collection string          `json:"collection,omitempty"` // Used for: all document operations except declare
	Payload    json.RawMessage `json:"payload,omitempty"`    // JSON encoded DocPayload, also the key list of Keys

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Get, Has, Acquire, Release, FindOne, Update responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: SetEIfUnset and Acquire (lease), free for additional Adapters otherwise
}

// --------------------------------------------------------------------------
// Message Factory Functions (key-value)
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTKVSet, Key: key, Value: value}
}

// NewSetIfUnsetRequest creates a new SetIfUnset request
func NewSetIfUnsetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTKVSetIfUnset, Key: key, Value: value}
}

// NewSetEIfUnsetRequest creates a new SetEIfUnset request carrying the lease in Meta
func NewSetEIfUnsetRequest(key string, value []byte, lease time.Duration) *Message {
	return &Message{MsgType: MsgTKVSetEIfUnset, Key: key, Value: value, Meta: encodeLease(lease)}
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{MsgType: MsgTKVDelete, Key: key}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{MsgType: MsgTKVGet, Key: key}
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{MsgType: MsgTKVHas, Key: key}
}

// NewKeysRequest creates a new Keys request
func NewKeysRequest() *Message {
	return &Message{MsgType: MsgTKVKeys}
}

// NewKeysResponse creates a Keys response carrying the keys as a JSON array in the payload
func NewKeysResponse(keys []string, err error) *Message {
	msg := NewResponse(MsgTKVKeys, err)
	if err == nil {
		payload, mErr := json.Marshal(keys)
		if mErr != nil {
			return NewErrorResponse(mErr.Error())
		}
		msg.Payload = payload
	}
	return msg
}

// NewValueResponse creates a response for Get (value, ok) and Has (ok only)
func NewValueResponse(t MessageType, value []byte, ok bool, err error) *Message {
	msg := NewResponse(t, err)
	msg.Value = value
	msg.Ok = ok
	return msg
}

// --------------------------------------------------------------------------
// Message Factory Functions (locks)
// --------------------------------------------------------------------------

// NewAcquireRequest creates a new Acquire request. A lease of 0 holds the lock until it is released.
func NewAcquireRequest(key string, lease time.Duration) *Message {
	return &Message{MsgType: MsgTLCKAcquire, Key: key, Meta: encodeLease(lease)}
}

// Lease returns the lease carried in Meta, 0 if there is none
func (m *Message) Lease() time.Duration {
	if len(m.Meta) != 8 {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(m.Meta))
}

func encodeLease(lease time.Duration) []byte {
	if lease <= 0 {
		return nil
	}
	return binary.BigEndian.AppendUint64(nil, uint64(lease))
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string, ownerId []byte) *Message {
	return &Message{MsgType: MsgTLCKRelease, Key: key, Value: ownerId}
}

// --------------------------------------------------------------------------
// Message Factory Functions (documents)
// --------------------------------------------------------------------------

// NewDocRequest creates a request for the document operation t.
// payload is encoded as JSON, nil leaves the payload empty.
func NewDocRequest(t MessageType, database, collection string, payload *DocPayload) (*Message, error) {
	msg := &Message{MsgType: t, Database: database, Collection: collection}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// NewDocResponse creates a response for the document operation t
func NewDocResponse(t MessageType, payload *DocPayload, ok bool, err error) *Message {
	if err != nil {
		return &Message{MsgType: t, Err: EncodeError(err)}
	}
	msg := &Message{MsgType: t, Ok: ok}
	if payload != nil {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			return NewErrorResponse(fmt.Sprintf("failed to encode %s payload: %v", t, mErr))
		}
		msg.Payload = raw
	}
	return msg
}

// DecodePayload decodes the document payload of a message. An empty payload yields an empty DocPayload.
func (m *Message) DecodePayload() (*DocPayload, error) {
	p := &DocPayload{}
	if len(m.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(m.Payload, p); err != nil {
		return nil, err
	}
	return p, nil
}

// --------------------------------------------------------------------------
// Generic Message Factory Functions
// --------------------------------------------------------------------------

// NewResponse creates a response of type t that only reports an error (or none)
func NewResponse(t MessageType, err error) *Message {
	msg := &Message{MsgType: t}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewOkResponse creates a response of type t carrying ok, a value (e.g. owner ID) and an error
func NewOkResponse(t MessageType, ok bool, value []byte, err error) *Message {
	msg := NewResponse(t, err)
	msg.Ok = ok
	msg.Value = value
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet         // Set a key-value pair
	MsgTKVSetIfUnset  // Set a key-value pair if not already set
	MsgTKVSetEIfUnset // Set a key-value pair with a lease if not set or the lease ended
	MsgTKVDelete      // Delete a key-value pair
	MsgTKVGet         // Get a value by key
	MsgTKVHas         // Check if a key exists
	MsgTKVKeys        // List all keys

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock

	// IDatabase operations

	MsgTDOCDeclare    // Declare collections
	MsgTDOCCount      // Count the documents of a collection
	MsgTDOCFind       // Query a collection
	MsgTDOCFindOne    // First document matching a filter
	MsgTDOCInsert     // Insert one document
	MsgTDOCInsertMany // Insert several documents
	MsgTDOCUpdate     // Patch the first matching document
	MsgTDOCRemove     // Remove all matching documents
	MsgTDOCAll        // All documents of a collection
	MsgTDOCSnapshot   // All collections of a database

	// Custom operations

	MsgTCustom // Custom operation type
)

// messageTypeNames is indexed by MessageType
var messageTypeNames = [...]string{
	MsgTUnknown:       "unknown",
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTKVSet:         "set",
	MsgTKVSetIfUnset:  "setIfUnset",
	MsgTKVSetEIfUnset: "setEIfUnset",
	MsgTKVDelete:      "delete",
	MsgTKVGet:         "get",
	MsgTKVHas:         "has",
	MsgTKVKeys:        "keys",
	MsgTLCKAcquire:    "acquire",
	MsgTLCKRelease:    "release",
	MsgTDOCDeclare:    "declare",
	MsgTDOCCount:      "count",
	MsgTDOCFind:       "find",
	MsgTDOCFindOne:    "findOne",
	MsgTDOCInsert:     "insert",
	MsgTDOCInsertMany: "insertMany",
	MsgTDOCUpdate:     "update",
	MsgTDOCRemove:     "remove",
	MsgTDOCAll:        "all",
	MsgTDOCSnapshot:   "snapshot",
	MsgTCustom:        "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "unknown"
}

// IsDocOperation reports whether t addresses a document database
func (t MessageType) IsDocOperation() bool {
	return t >= MsgTDOCDeclare && t <= MsgTDOCSnapshot
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range messageTypeNames {
		if name == s {
			*t = MessageType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}
