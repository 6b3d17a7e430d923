// Package tcp implements the framed RPC transport over TCP sockets on top of package base.
// TCP_NODELAY, keep-alive, linger and socket buffer sizes are applied from the
// TCPConf and SocketConf of the client and server configuration.
package tcp
