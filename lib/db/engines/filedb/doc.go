// Package filedb provides a durable db.KVDB engine that stores every key in its own file.
//
// Keys are hex encoded into file names, so any key is safe to use. Writes go through
// github.com/natefinch/atomic, which writes a temporary file and renames it over the target:
// a crash never leaves a half written database snapshot behind.
//
// This engine suits small deployments where the data should stay inspectable on disk.
package filedb
