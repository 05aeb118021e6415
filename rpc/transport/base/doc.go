// Package base implements the socket transports (tcp, unix) independent of the
// socket type. Concrete packages only provide an IServerConnector and an
// IClientConnector.
//
// Wire format: every request and response is one frame of shard id, request id,
// payload length and the serialized common.Message. The request id lets a client
// keep many requests in flight on one connection, the server answers them in any
// order.
//
// Server: one goroutine per connection reads frames, up to maxWorkersPerConn
// goroutines run the handler. Read buffers are pooled. Shutdown closes the
// listener, stops reading and waits for running requests until the context ends.
//
// Client: a pool of ConnectionsPerEndpoint connections per endpoint, picked
// round-robin. A reader goroutine per connection matches responses to waiting
// requests. When a connection breaks, its waiting requests fail and it is dialed
// again. Send retries failed attempts on the next connection with exponential
// backoff.
package base
