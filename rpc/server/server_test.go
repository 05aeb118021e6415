package server

import (
	"context"
	"fmt"
	"testing"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/lib/codegen"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/serializer"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureTransport records the handlers the server registers
type captureTransport struct {
	handler    transport.ServerHandleFunc
	dispatcher transport.ServerDispatchFunc
}

func (c *captureTransport) RegisterHandler(h transport.ServerHandleFunc)      { c.handler = h }
func (c *captureTransport) RegisterDispatcher(d transport.ServerDispatchFunc) { c.dispatcher = d }
func (c *captureTransport) Listen(common.ServerConfig) error                  { return nil }
func (c *captureTransport) Shutdown(context.Context) error                    { return nil }

func localConfig(shardIDs ...uint64) common.ServerConfig {
	cfg := common.ServerConfig{
		DefaultShardID: shardIDs[0],
		TimeoutSecond:  5,
		LogLevel:       "error",
	}
	for _, id := range shardIDs {
		cfg.Shards = append(cfg.Shards, common.ServerShard{ShardID: id, Type: common.ShardTypeLocal})
	}
	return cfg
}

func newTestServer(t *testing.T, ser serializer.IRPCSerializer, shardIDs ...uint64) (*RPCServer, *captureTransport) {
	t.Helper()
	tr := &captureTransport{}
	s := NewRPCServer(localConfig(shardIDs...), tr, ser)
	require.NoError(t, s.init())
	require.NotNil(t, tr.handler)
	require.NotNil(t, tr.dispatcher)
	return s, tr
}

// useFixedCodes replaces the service of a shard with one that issues the given codes
func useFixedCodes(t *testing.T, s *RPCServer, shardID uint64, codes ...string) {
	t.Helper()
	shard, ok := s.shards.Load(shardID)
	require.True(t, ok)
	shard.Service = binding.NewService(shard.Store, codegen.Fixed(codes...))
	s.shards.Store(shardID, shard)
}

func TestInitValidatesConfig(t *testing.T) {
	t.Run("NoShards", func(t *testing.T) {
		s := NewRPCServer(common.ServerConfig{LogLevel: "info"}, &captureTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
	})

	t.Run("UnknownDefaultShard", func(t *testing.T) {
		cfg := localConfig(100)
		cfg.DefaultShardID = 7
		s := NewRPCServer(cfg, &captureTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
	})

	t.Run("DuplicateShard", func(t *testing.T) {
		s := NewRPCServer(localConfig(100, 100), &captureTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := localConfig(100)
		cfg.LogLevel = "chatty"
		s := NewRPCServer(cfg, &captureTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
	})

	t.Run("InvalidShardType", func(t *testing.T) {
		cfg := localConfig(100)
		cfg.Shards[0].Type = "memory"
		s := NewRPCServer(cfg, &captureTransport{}, serializer.NewJSONSerializer())
		assert.Error(t, s.init())
	})
}

func TestRawRoundTrip(t *testing.T) {
	for name, ser := range map[string]serializer.IRPCSerializer{
		"JSON":   serializer.NewJSONSerializer(),
		"Binary": serializer.NewBinarySerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			s, tr := newTestServer(t, ser, 100)
			useFixedCodes(t, s, 100, "AAAA", "BBBB")

			call := func(req *common.Message) common.Message {
				data, err := ser.Serialize(*req)
				require.NoError(t, err)
				var resp common.Message
				require.NoError(t, ser.Deserialize(tr.handler(100, data), &resp))
				return resp
			}

			resp := call(common.NewBindNewRequest("foo", "bar"))
			assert.Equal(t, common.MsgTBindNew, resp.MsgType)
			assert.Equal(t, binding.ResultSent, resp.Result)

			resp = call(common.NewBindVerifyRequest("foo", "bar", "AAAA"))
			assert.Equal(t, binding.ResultSuccess, resp.Result)

			resp = call(common.NewBindQueryRequest([]string{"foo", "nobody"}))
			assert.Equal(t, []string{"foo"}, resp.UserIDs)

			resp = call(common.NewBindDelRequest("foo", "bar"))
			assert.Equal(t, common.MsgTBindDel, resp.MsgType)
			assert.Empty(t, resp.Err)
		})
	}
}

func TestRawGarbage(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	_, tr := newTestServer(t, ser, 100)

	var resp common.Message
	require.NoError(t, ser.Deserialize(tr.handler(100, []byte{1}), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, common.ErrKindInvalid, resp.ErrKind)
}

func TestDispatchErrors(t *testing.T) {
	_, tr := newTestServer(t, serializer.NewJSONSerializer(), 100, 200)

	tests := []struct {
		name    string
		shardID uint64
		req     *common.Message
		kind    common.ErrorKind
	}{
		{"UnknownShard", 300, common.NewBindNewRequest("foo", "bar"), common.ErrKindNoShard},
		{"UnsupportedType", 100, &common.Message{MsgType: common.MsgTSuccess}, common.ErrKindUnsupported},
		{"MissingUser", 100, common.NewBindNewRequest("", "bar"), common.ErrKindInvalid},
		{"MissingCode", 100, common.NewBindVerifyRequest("foo", "bar", ""), common.ErrKindInvalid},
		{"MissingNewChannel", 200, common.NewBindUpdateRequest("foo", "bar", ""), common.ErrKindInvalid},
		{"MissingChannelOnDel", 200, common.NewBindDelRequest("foo", ""), common.ErrKindInvalid},
		{"EmptyQuery", 100, common.NewBindQueryRequest(nil), common.ErrKindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tr.dispatcher(tt.shardID, tt.req)
			assert.Equal(t, tt.kind, resp.ErrKind)
			assert.NotEmpty(t, resp.Err)
		})
	}
}

func TestMissingFieldsNamesGatewayFields(t *testing.T) {
	missing := missingFields(common.NewBindUpdateRequest("", "", "x"))
	assert.Equal(t, []string{"userId", "oldGcmId"}, missing)
	assert.Empty(t, missingFields(common.NewBindQueryRequest([]string{""})))
}

func TestShardsAreIndependent(t *testing.T) {
	_, tr := newTestServer(t, serializer.NewJSONSerializer(), 100, 200)

	resp := tr.dispatcher(100, common.NewBindNewRequest("foo", "bar"))
	require.Equal(t, binding.ResultSent, resp.Result)

	// the same channel id is free on the other shard
	resp = tr.dispatcher(200, common.NewBindNewRequest("other", "bar"))
	assert.Equal(t, binding.ResultSent, resp.Result)

	resp = tr.dispatcher(100, common.NewBindNewRequest("other", "bar"))
	assert.Equal(t, binding.ResultInvalidUser, resp.Result)
}

func TestMetrics(t *testing.T) {
	_, tr := newTestServer(t, serializer.NewJSONSerializer(), 100)

	sent := vm.GetOrCreateCounter(`dbind_requests_total{op="new",result="SENT"}`)
	invalidUser := vm.GetOrCreateCounter(`dbind_requests_total{op="new",result="INVALID_USER"}`)
	queryErrors := vm.GetOrCreateCounter(`dbind_request_errors_total{op="query"}`)
	sentBefore, invalidBefore, errorsBefore := sent.Get(), invalidUser.Get(), queryErrors.Get()

	for i := 0; i < 3; i++ {
		tr.dispatcher(100, common.NewBindNewRequest("metrics-user", fmt.Sprintf("metrics-channel-%d", i)))
	}
	tr.dispatcher(100, common.NewBindNewRequest("someone-else", "metrics-channel-0"))
	tr.dispatcher(100, common.NewBindQueryRequest(nil))

	assert.Equal(t, sentBefore+3, sent.Get())
	assert.Equal(t, invalidBefore+1, invalidUser.Get())
	assert.Equal(t, errorsBefore+1, queryErrors.Get())
}
