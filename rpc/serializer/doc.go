// Package serializer provides message serialization for the binding RPC endpoint.
// It defines a common interface and three implementations for turning a
// common.Message into bytes and back.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A two byte flag field marks which
//     optional fields follow, so a request only carries the ids it needs. The
//     decoder validates every length against the remaining input and rejects
//     trailing bytes.
//
//   - jsonSerializerImpl: JSON encoding with the same field names the HTTP gateway
//     accepts. Useful for debugging or for clients in other languages.
//
//   - gobSerializerImpl: Go's gob format. Needs no hand-written codec, but every
//     message carries its type description and is larger than the binary form.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(*common.NewBindNewRequest("alice", "gcm-1"))
//	// ... send data ...
//	var resp common.Message
//	err = serializer.Deserialize(receivedData, &resp)
package serializer
