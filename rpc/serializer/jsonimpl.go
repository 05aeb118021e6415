package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dBind/rpc/common"
)

// NewJSONSerializer creates a serializer that writes a message with the same
// field names the HTTP gateway accepts (userId, gcmId, ...). Message types,
// results and error kinds are encoded by name, so the output is readable in logs.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
