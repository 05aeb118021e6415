// Package transport defines the interfaces between the RPC server or client and
// the network layer that carries their messages.
//
// Key Components:
//
//   - IRPCServerTransport: Receives requests and routes them by shard id. Serialized
//     requests go to a ServerHandleFunc, requests the transport decodes itself (the
//     JSON gateway of the http transport) go to a ServerDispatchFunc.
//
//   - IRPCClientTransport: Connection management and request sending for clients.
//
// Implementations: http (RPC endpoint, JSON gateway and metrics) and the socket
// transports tcp and unix built on base, which carry the RPC endpoint only.
package transport
