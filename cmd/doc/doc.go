// Package doc implements the "lsdb doc" command group: one command per document operation,
// an interactive shell (liner based, with history in ~/.lsdb_history) and a perf tool.
package doc
