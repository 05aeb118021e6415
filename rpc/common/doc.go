// Package common provides the data structures shared by the server, the client
// and the transports of the binding service.
//
// The package focuses on:
//   - Message protocol definition for the binding operations
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: A single flat structure for requests and responses of every
//     binding operation. The json field names double as the body format of the
//     HTTP gateway, so a gateway request decodes straight into a Message.
//
//   - MessageType: The operation of a message (bindNew, bindVerify, bindUpdate,
//     bindDel, bindQuery) plus the error type. Op() yields the short gateway name.
//
//   - ErrorKind: Classifies the error text of a response. Clients turn conflicts
//     back into binding.ErrConflict and invalid requests into binding.ErrInvalidArgument.
//
//   - ServerConfig: Shards, RAFT parameters, storage, endpoint and log level of a
//     node. Provides conversion to Dragonboat configurations.
//
//   - ClientConfig: Endpoints, timeout, retries and target shard of a client.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
