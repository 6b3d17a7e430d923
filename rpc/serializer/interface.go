package serializer

import "github.com/roberthgnz/lsdb/rpc/common"

// IRPCSerializer converts messages to bytes and back. Client and server have to use the same one.
type IRPCSerializer interface {
	// Name identifies the encoding ("json", "gob", "binary")
	Name() string
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. All fields of msg are overwritten,
	// so a message value can be reused between calls.
	Deserialize(b []byte, msg *common.Message) error
}
