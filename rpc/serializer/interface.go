package serializer

import "github.com/ValentinKolb/dBind/rpc/common"

// IRPCSerializer turns a common.Message into bytes for the RPC endpoint and back.
// Server and client must use the same implementation, the wire formats are not
// self-describing.
type IRPCSerializer interface {
	// Serialize encodes a request or response
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. msg is reset first, fields missing in b
	// end up with their zero value.
	Deserialize(b []byte, msg *common.Message) error
}
