package util

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Snapshot Format
// --------------------------------------------------------------------------

// Snapshot layout (little endian):
//
//	magic   [8]byte "LSDBSNAP"
//	version uint8
//	count   uint64
//	count x { index uint64 | deleteAt int64 | keyLen uint32 | key | valueLen uint32 | value }
const (
	snapshotMagic   = "LSDBSNAP"
	snapshotVersion = 2
)

// Entry is one key/value pair of a snapshot. DeleteAt is the end of the entry's lease (0 = none).
type Entry struct {
	Key      string
	Value    []byte
	Index    uint64
	DeleteAt int64
}

// WriteSnapshot writes all entries to w in the engine-independent snapshot format
func WriteSnapshot(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, e.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.DeleteAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.Key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot and calls fn for every entry in order.
// Reading stops at the first error returned by fn.
func ReadSnapshot(r io.Reader, fn func(e Entry) error) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != snapshotMagic {
		return fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapshotVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint64(0); i < count; i++ {
		var (
			e      Entry
			keyLen uint32
			valLen uint32
		)
		if err := binary.Read(br, binary.LittleEndian, &e.Index); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &e.DeleteAt); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}
		e.Key = string(key)
		if err := binary.Read(br, binary.LittleEndian, &valLen); err != nil {
			return err
		}
		e.Value = make([]byte, valLen)
		if _, err := io.ReadFull(br, e.Value); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}

	return nil
}
