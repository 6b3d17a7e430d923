package tcp

import (
	"net"
	"time"

	"github.com/roberthgnz/lsdb/rpc/common"
	"github.com/roberthgnz/lsdb/rpc/transport"
	"github.com/roberthgnz/lsdb/rpc/transport/base"
)

// dialTimeout bounds a single connection attempt, the retry loop of the base transport handles the rest
const dialTimeout = 5 * time.Second

// NewTCPClientTransport returns a client transport that multiplexes requests over TCP connections
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(tcpDialer{})
}

type tcpDialer struct{}

func (tcpDialer) GetName() string { return "tcp" }

func (tcpDialer) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, dialTimeout)
}

func (tcpDialer) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	return upgradeTCPConn(conn, config.Transport.SocketConf, config.Transport.TCPConf)
}
