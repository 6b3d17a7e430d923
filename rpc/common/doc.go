// Package common holds the types shared by the lsdb RPC client, server, transports and serializers.
//
// Key Components:
//
//   - Message: the single request/response structure of the RPC protocol. Key-value and lock
//     operations use Key, Value and Ok. Document operations address Database and Collection and
//     carry a JSON encoded DocPayload.
//
//   - MessageType: all supported operations, serialized as their name in JSON
//     ("set", "acquire", "find", "insertMany", ...).
//
//   - EncodeError/DecodeError: document errors travel as Err strings with a kind prefix
//     ("validation:", "unsupported operator:", "unknown collection:"), clients turn them back
//     into the typed errors of the docdb package.
//
//   - ServerConfig/ClientConfig: configuration of servers and clients. Shards are declared as
//     ID=TYPE(ENGINE), see ParseShard.
//
//   - Logger: a dragonboat logger.Factory giving all packages the same line format.
package common
