// Package rpc is the communication layer between binding clients and servers.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network abstractions, implemented by the http subpackage which also
//     hosts the JSON gateway and the metrics endpoint.
//
//   - serializer: Binary and JSON encodings of Message.
//
//   - client: A binding.IService that forwards every call to a remote shard.
//
//   - server: Shard setup, request dispatch onto binding services and request metrics.
package rpc
