// Package internal holds the raft log format of the dstore package.
//
//   - Command: a write (Set, SetIfUnset, Delete) proposed to the raft shard. Commands are binary encoded
//     because a Set carries a whole database snapshot and is stored once per replica in the raft log.
//   - Query: a read (Get, Has, Keys, GetDBInfo) executed locally on a replica's state machine.
//     Queries never leave the process and therefore are not serialized.
//
// Command Format:
//
//	+--------+-------------+-----------+-------------------+
//	| type   | key length  | key       | value             |
//	| 1 byte | 4 bytes BE  | N bytes   | remaining bytes   |
//	+--------+-------------+-----------+-------------------+
package internal
