package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/roberthgnz/lsdb/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet         CommandType = iota // Insert or update an entry.
	CommandTSetIfUnset                     // Insert an entry if it does not exist.
	CommandTDelete                         // Delete an entry.
	CommandTSetEIfUnset                    // Insert a leased entry if it does not exist or its lease ended.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTSetIfUnset:
		return "SetIfUnset"
	case CommandTDelete:
		return "Delete"
	case CommandTSetEIfUnset:
		return "SetEIfUnset"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the db.Feature the engine needs to execute it.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTSetIfUnset:
		return db.FeatureSetIfUnset, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTSetEIfUnset:
		return db.FeatureSetEIfUnset, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

const (
	// headerSize is the fixed part of a serialized command: type + key length
	headerSize = 1 + 4
	// leaseSize is the lease window carried by CommandTSetEIfUnset: now + deleteAt
	leaseSize = 8 + 8
)

// Command is a single entry in the raft log.
// Now and DeleteAt are only used by CommandTSetEIfUnset. Now is the proposer's clock,
// so all replicas judge an existing lease against the same time.
type Command struct {
	Type     CommandType
	Key      string
	Value    []byte
	Now      int64
	DeleteAt int64
}

func (command *Command) leased() bool {
	return command.Type == CommandTSetEIfUnset
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := headerSize + len(command.Key) + len(command.Value)
	if command.leased() {
		size += leaseSize
	}
	return size
}

// Serialize encodes the command as:
// 1 byte operation type,
// 4 bytes key length (big endian),
// N bytes key,
// for SetEIfUnset 8 bytes now and 8 bytes deleteAt (big endian),
// the remaining bytes are the value (a database snapshot for Set).
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:headerSize], uint32(len(command.Key)))
	pos := headerSize + copy(result[headerSize:], command.Key)
	if command.leased() {
		binary.BigEndian.PutUint64(result[pos:], uint64(command.Now))
		binary.BigEndian.PutUint64(result[pos+8:], uint64(command.DeleteAt))
		pos += leaseSize
	}
	copy(result[pos:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	keyLen := int(binary.BigEndian.Uint32(data[1:headerSize]))

	if len(data) < headerSize+keyLen {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}
	command.Key = string(data[headerSize : headerSize+keyLen])
	rest := data[headerSize+keyLen:]

	command.Now, command.DeleteAt = 0, 0
	if command.leased() {
		if len(rest) < leaseSize {
			return fmt.Errorf("data too short for lease of %s", command.Type)
		}
		command.Now = int64(binary.BigEndian.Uint64(rest[:8]))
		command.DeleteAt = int64(binary.BigEndian.Uint64(rest[8:leaseSize]))
		rest = rest[leaseSize:]
	}

	if len(rest) > 0 {
		command.Value = make([]byte, len(rest))
		copy(command.Value, rest)
	} else {
		command.Value = nil
	}

	return nil
}
