package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/ValentinKolb/dBind/rpc/transport/base"
)

const (
	defaultBufferSize     = 64 * 1024 // requests are a few hundred bytes, query lists may be larger
	defaultWorkersPerConn = 64
	serverKeepAlive       = 30 * time.Second
)

// NewTCPServerTransport creates a tcp server transport listening on ServerConfig.Endpoint (host:port)
func NewTCPServerTransport() transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, defaultBufferSize, defaultWorkersPerConn)
}

// NewTCPClientTransport creates a tcp client transport, endpoints are host:port
// with an optional tcp:// prefix
func NewTCPClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}

// --------------------------------------------------------------------------
// Server (docu see base.IServerConnector)
// --------------------------------------------------------------------------

type serverConnector struct{}

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp socket: %w", err)
	}
	return listener, nil
}

func (c *serverConnector) UpgradeConnection(conn net.Conn, _ common.ServerConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	// responses are small and should leave immediately
	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return err
	}
	return tcpConn.SetKeepAlivePeriod(serverKeepAlive)
}

// --------------------------------------------------------------------------
// Client (docu see base.IClientConnector)
// --------------------------------------------------------------------------

type clientConnector struct{}

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, 5*time.Second)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcpConn.SetNoDelay(config.TCPNoDelay); err != nil {
		return err
	}
	if config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		return tcpConn.SetKeepAlivePeriod(time.Duration(config.TCPKeepAliveSec) * time.Second)
	}
	return nil
}
