package transport

import (
	"context"

	"github.com/ValentinKolb/dBind/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming serialized requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// ServerDispatchFunc handles a request that the transport already decoded itself,
// like a request of the JSON gateway
type ServerDispatchFunc func(shardId uint64, req *common.Message) (resp *common.Message)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for serialized RPC requests
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// RegisterDispatcher registers the handler for requests decoded by the transport
	RegisterDispatcher(dispatcher ServerDispatchFunc)
	// Listen starts the transport layer and blocks while serving requests.
	// It returns nil after a Shutdown.
	Listen(config common.ServerConfig) error
	// Shutdown stops accepting requests and waits for in-flight requests until ctx is done
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
