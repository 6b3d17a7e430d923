// Package serializer converts common.Message values to bytes and back for the RPC transports.
//
// Implementations:
//
//   - NewJSONSerializer: human-readable, message types are written as names and document
//     payloads stay plain JSON. Default of the CLI.
//
//   - NewBinarySerializer: compact flag based format encoding only the fields that are set.
//
//   - NewGOBSerializer: Go's gob encoding.
//
// All serializers are stateless and safe for concurrent use.
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize(*common.NewGetRequest("key"))
//	// ... send data ...
//	var msg common.Message
//	err = s.Deserialize(received, &msg)
package serializer
