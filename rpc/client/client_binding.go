package client

import (
	"fmt"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/serializer"
	"github.com/ValentinKolb/dBind/rpc/transport"
)

// NewRPCBindingClient connects the transport and returns a binding.IService that
// forwards every call to the shard config.ShardID of the remote servers
func NewRPCBindingClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*BindingClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &BindingClient{
		rpcClientAdapter{
			shardId:    config.ShardID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// BindingClient is the remote counterpart of binding.Service
type BindingClient struct {
	rpcClientAdapter
}

var _ binding.IService = (*BindingClient)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see binding.IService)
// --------------------------------------------------------------------------

func (c *BindingClient) New(userID, channelID string) (binding.Result, error) {
	return c.result(common.NewBindNewRequest(userID, channelID))
}

func (c *BindingClient) Verify(userID, channelID, code string) (binding.Result, error) {
	return c.result(common.NewBindVerifyRequest(userID, channelID, code))
}

func (c *BindingClient) Update(userID, oldChannelID, newChannelID string) (binding.Result, error) {
	return c.result(common.NewBindUpdateRequest(userID, oldChannelID, newChannelID))
}

func (c *BindingClient) Delete(userID, channelID string) error {
	_, err := c.invokeRPCRequest(common.NewBindDelRequest(userID, channelID))
	return err
}

func (c *BindingClient) Query(userIDs []string) ([]string, error) {
	resp, err := c.invokeRPCRequest(common.NewBindQueryRequest(userIDs))
	if err != nil {
		return nil, err
	}
	// the json serializer drops empty lists
	if resp.UserIDs == nil {
		return []string{}, nil
	}
	return resp.UserIDs, nil
}

// Close releases the connections of the transport
func (c *BindingClient) Close() error {
	return c.transport.Close()
}

func (c *BindingClient) result(req *common.Message) (binding.Result, error) {
	resp, err := c.invokeRPCRequest(req)
	if err != nil {
		return 0, err
	}
	if resp.Result == 0 {
		return 0, fmt.Errorf("%s response without result", req.MsgType)
	}
	return resp.Result, nil
}
