package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/roberthgnz/lsdb/rpc/common"
)

// NewBinarySerializer creates a new serializer using a compact binary format
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl writes
//
//	type (1 byte) | flags (1 byte) | present fields in flag order
//
// Strings and byte slices are prefixed with their length (uint32, big endian).
// Ok is carried by its flag alone.
type binarySerializerImpl struct{}

// Bit flags to indicate which optional fields are present
const (
	hasKey        byte = 1 << 0
	hasValue      byte = 1 << 1
	hasDatabase   byte = 1 << 2
	hasCollection byte = 1 << 3
	hasPayload    byte = 1 << 4
	hasOk         byte = 1 << 5
	hasErr        byte = 1 << 6
	hasMeta       byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string {
	return "binary"
}

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var flags byte
	size := 2
	addString := func(flag byte, s string) {
		if s != "" {
			flags |= flag
			size += 4 + len(s)
		}
	}
	addBytes := func(flag byte, p []byte) {
		if p != nil {
			flags |= flag
			size += 4 + len(p)
		}
	}

	addString(hasKey, msg.Key)
	addBytes(hasValue, msg.Value)
	addString(hasDatabase, msg.Database)
	addString(hasCollection, msg.Collection)
	addBytes(hasPayload, msg.Payload)
	if msg.Ok {
		flags |= hasOk
	}
	addString(hasErr, msg.Err)
	addBytes(hasMeta, msg.Meta)

	out := make([]byte, 2, size)
	out[0] = byte(msg.MsgType)
	out[1] = flags

	put := func(flag byte, p []byte) {
		if flags&flag == 0 {
			return
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(p)))
		out = append(out, p...)
	}
	put(hasKey, []byte(msg.Key))
	put(hasValue, msg.Value)
	put(hasDatabase, []byte(msg.Database))
	put(hasCollection, []byte(msg.Collection))
	put(hasPayload, msg.Payload)
	put(hasErr, []byte(msg.Err))
	put(hasMeta, msg.Meta)

	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := data[1]
	pos := 2

	// next reads the field for flag, nil if absent. The result never aliases data.
	next := func(flag byte, name string) ([]byte, error) {
		if flags&flag == 0 {
			return nil, nil
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("data too short for %s length", name)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, fmt.Errorf("data too short for %s data", name)
		}
		field := make([]byte, n)
		copy(field, data[pos:pos+n])
		pos += n
		return field, nil
	}

	key, err := next(hasKey, "key")
	if err != nil {
		return err
	}
	msg.Key = string(key)

	if msg.Value, err = next(hasValue, "value"); err != nil {
		return err
	}

	database, err := next(hasDatabase, "database")
	if err != nil {
		return err
	}
	msg.Database = string(database)

	collection, err := next(hasCollection, "collection")
	if err != nil {
		return err
	}
	msg.Collection = string(collection)

	if msg.Payload, err = next(hasPayload, "payload"); err != nil {
		return err
	}

	msg.Ok = flags&hasOk != 0

	errMsg, err := next(hasErr, "error")
	if err != nil {
		return err
	}
	msg.Err = string(errMsg)

	if msg.Meta, err = next(hasMeta, "meta"); err != nil {
		return err
	}
	return nil
}
