// Package cmd implements the command-line interface of lsdb. It provides a hierarchical
// command structure with operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - doc: Commands for document databases (declare, find, insert, update, an interactive shell, ...)
//   - kv: Commands for key-value store operations (get, set, delete, etc.)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the lsdb server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be given as environment variable LSDB_<FLAG> (e.g. LSDB_TIMEOUT=15),
// .env and .env.local in the working directory are read on startup.
//
// See lsdb -help for a list of all commands.
package cmd
