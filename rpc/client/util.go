package client

import (
	"fmt"

	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/serializer"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used by the RPC client to send requests
// It returns the response message, or the error the server reported in it.
// This method also checks if the type of the response is the expected type
func (a *rpcClientAdapter) invokeRPCRequest(req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("serialize %s request: %w", req.MsgType, err)
	}

	// Send the request
	respBytes, err := a.transport.Send(a.shardId, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("send %s request to shard %d: %w", req.MsgType, a.shardId, err)
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("deserialize %s response: %w", req.MsgType, err)
	}

	// Check if the response is an error response
	if err := resp.AsError(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected response type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
