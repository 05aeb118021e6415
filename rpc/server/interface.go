package server

import (
	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the binding service of the addressed shard.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, svc binding.IService) (resp *common.Message)
}
