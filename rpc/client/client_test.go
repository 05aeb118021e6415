package client

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/lib/codegen"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple"
	"github.com/ValentinKolb/dBind/lib/store/lstore"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/serializer"
	"github.com/ValentinKolb/dBind/rpc/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackTransport hands requests directly to a server adapter
type loopbackTransport struct {
	ser       serializer.IRPCSerializer
	svc       binding.IService
	shardID   uint64
	connected bool
	sendErr   error
	// rewrite lets a test tamper with the response
	rewrite func(*common.Message)
}

func (l *loopbackTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return errors.New("no endpoints")
	}
	l.connected = true
	return nil
}

func (l *loopbackTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	if l.sendErr != nil {
		return nil, l.sendErr
	}
	var msg common.Message
	if err := l.ser.Deserialize(req, &msg); err != nil {
		return nil, err
	}

	var resp *common.Message
	if shardId != l.shardID {
		resp = common.NewErrorResponse(common.ErrKindNoShard, "shard not found")
	} else {
		resp = server.NewBindingServerAdapter().Handle(&msg, l.svc)
	}
	if l.rewrite != nil {
		l.rewrite(resp)
	}
	return l.ser.Serialize(*resp)
}

func (l *loopbackTransport) Close() error {
	l.connected = false
	return nil
}

func newClient(t *testing.T, ser serializer.IRPCSerializer, svc binding.IService) (*BindingClient, *loopbackTransport) {
	t.Helper()
	tr := &loopbackTransport{ser: ser, svc: svc, shardID: 100}
	c, err := NewRPCBindingClient(common.ClientConfig{Endpoints: []string{"loopback"}, ShardID: 100}, tr, ser)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, tr
}

func newService(codes ...string) binding.IService {
	return binding.NewService(
		lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) }),
		codegen.Fixed(codes...),
	)
}

func serializers() map[string]serializer.IRPCSerializer {
	return map[string]serializer.IRPCSerializer{
		"JSON":   serializer.NewJSONSerializer(),
		"Binary": serializer.NewBinarySerializer(),
	}
}

func TestClientScenario(t *testing.T) {
	for name, ser := range serializers() {
		t.Run(name, func(t *testing.T) {
			c, _ := newClient(t, ser, newService("C1", "C2"))

			r, err := c.New("foo", "bar")
			require.NoError(t, err)
			assert.Equal(t, binding.ResultSent, r)

			r, err = c.New("foo", "bar")
			require.NoError(t, err)
			assert.Equal(t, binding.ResultResent, r)

			r, err = c.Verify("foo", "bar", "C1")
			require.NoError(t, err)
			assert.Equal(t, binding.ResultInvalidCode, r)

			r, err = c.Verify("foo", "bar", "C2")
			require.NoError(t, err)
			assert.Equal(t, binding.ResultSuccess, r)

			r, err = c.Update("foo", "bar", "bar2")
			require.NoError(t, err)
			assert.Equal(t, binding.ResultSuccess, r)

			ids, err := c.Query([]string{"foo", "foo2"})
			require.NoError(t, err)
			assert.Equal(t, []string{"foo"}, ids)

			require.NoError(t, c.Delete("foo", "bar2"))

			ids, err = c.Query([]string{"foo"})
			require.NoError(t, err)
			assert.NotNil(t, ids)
			assert.Empty(t, ids)
		})
	}
}

func TestClientErrorClasses(t *testing.T) {
	for name, ser := range serializers() {
		t.Run(name, func(t *testing.T) {
			c, tr := newClient(t, ser, newService())

			// rejected by the server adapter
			_, err := c.New("", "bar")
			assert.ErrorIs(t, err, binding.ErrInvalidArgument)

			// conflict reported by the service
			tr.rewrite = func(m *common.Message) {
				m.Result = 0
				m.Err = "verify: write bar: binding was modified concurrently"
				m.ErrKind = common.ErrKindConflict
			}
			_, err = c.Verify("foo", "bar", "code")
			assert.ErrorIs(t, err, binding.ErrConflict)

			// internal fault
			tr.rewrite = func(m *common.Message) {
				m.Err = "disk on fire"
				m.ErrKind = common.ErrKindInternal
			}
			err = c.Delete("foo", "bar")
			require.Error(t, err)
			assert.NotErrorIs(t, err, binding.ErrConflict)
			assert.Contains(t, err.Error(), "disk on fire")

			// mismatching response type
			tr.rewrite = func(m *common.Message) { m.MsgType = common.MsgTBindDel }
			_, err = c.Query([]string{"foo"})
			assert.Error(t, err)

			// response without a result
			tr.rewrite = func(m *common.Message) { m.Result = 0 }
			_, err = c.New("foo", "bar2")
			assert.Error(t, err)
		})
	}
}

func TestClientWrongShard(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	tr := &loopbackTransport{ser: ser, svc: newService(), shardID: 1}
	c, err := NewRPCBindingClient(common.ClientConfig{Endpoints: []string{"loopback"}, ShardID: 2}, tr, ser)
	require.NoError(t, err)

	_, err = c.New("foo", "bar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noShard")
}

func TestClientTransportErrors(t *testing.T) {
	ser := serializer.NewJSONSerializer()

	_, err := NewRPCBindingClient(common.ClientConfig{}, &loopbackTransport{ser: ser}, ser)
	assert.Error(t, err, "connect without endpoints")

	c, tr := newClient(t, ser, newService())
	tr.sendErr = fmt.Errorf("connection refused")
	_, err = c.New("foo", "bar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	require.NoError(t, c.Close())
	assert.False(t, tr.connected)
}
