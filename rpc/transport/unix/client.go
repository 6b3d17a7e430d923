package unix

import (
	"net"
	"time"

	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/transport"
	"github.com/roberthgnz/lsdb/rpc/transport/base"
)

// NewUnixClientTransport returns a client transport for servers on the same host.
// Endpoints are socket paths.
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(socketDialer{})
}

type socketDialer struct{}

func (socketDialer) GetName() string { return "unix" }

func (socketDialer) Connect(path string) (net.Conn, error) {
	return net.DialTimeout("unix", path, time.Second)
}

// UpgradeConnection is a no-op, socket and TCP options do not apply to unix sockets
func (socketDialer) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}
