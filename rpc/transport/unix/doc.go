// Package unix implements the framed RPC transport over Unix domain sockets on top of
// package base. The endpoint is the socket path, an existing file at that path is removed
// when the server starts.
package unix
