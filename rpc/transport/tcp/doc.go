// Package tcp carries the RPC endpoint over plain tcp sockets.
//
// It plugs tcp specific connectors into the base package, which implements
// framing, request multiplexing and the connection pool. The server enables
// TCP_NODELAY and keep-alive on every accepted connection, the client applies
// ClientConfig.TCPNoDelay and ClientConfig.TCPKeepAliveSec.
//
// Only serialized requests are served. The JSON gateway and /metrics need the
// http transport.
package tcp
