package base

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackServer listens on a listener created by the test, so the address is known upfront
type loopbackServer struct {
	listener net.Listener
}

func (c *loopbackServer) Listen(common.ServerConfig) (net.Listener, error) { return c.listener, nil }
func (c *loopbackServer) GetName() string                                   { return "loop" }
func (c *loopbackServer) UpgradeConnection(net.Conn, common.ServerConfig) error {
	return nil
}

type loopbackClient struct{}

func (c *loopbackClient) Connect(endpoint string) (net.Conn, error) { return net.Dial("tcp", endpoint) }
func (c *loopbackClient) GetName() string                          { return "loop" }
func (c *loopbackClient) UpgradeConnection(net.Conn, common.ClientConfig) error {
	return nil
}

// startServer serves handler on a loopback port and returns its address and the result of Listen
func startServer(t *testing.T, handler transport.ServerHandleFunc) (string, transport.IRPCServerTransport, chan error) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewBaseServerTransport(&loopbackServer{listener: l}, 1024, 4)
	srv.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() { done <- srv.Listen(common.ServerConfig{Endpoint: l.Addr().String(), TimeoutSecond: 2}) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return l.Addr().String(), srv, done
}

func connect(t *testing.T, config common.ClientConfig) transport.IRPCClientTransport {
	t.Helper()
	c := NewBaseClientTransport(&loopbackClient{})
	require.NoError(t, c.Connect(config))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func echo(shardId uint64, req []byte) []byte {
	return []byte(fmt.Sprintf("%d:%s", shardId, req))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 100, 7, []byte("payload")))
	require.NoError(t, writeFrame(&buf, 200, 8, nil))

	shardID, requestID, data, err := readFrame(&buf, make([]byte, 2))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), shardID)
	assert.Equal(t, uint64(7), requestID)
	assert.Equal(t, "payload", string(data))

	shardID, requestID, data, err = readFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), shardID)
	assert.Equal(t, uint64(8), requestID)
	assert.Empty(t, data)
}

func TestFrameErrors(t *testing.T) {
	// truncated payload
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 1, 1, []byte("payload")))
	_, _, _, err := readFrame(bytes.NewReader(buf.Bytes()[:buf.Len()-2]), nil)
	assert.Error(t, err)

	// announced length above the limit
	header := make([]byte, headerSize)
	header[16] = 0xff
	_, _, _, err = readFrame(bytes.NewReader(header), nil)
	assert.ErrorContains(t, err, "exceeds limit")

	assert.Error(t, writeFrame(&bytes.Buffer{}, 1, 1, make([]byte, maxFrameSize+1)))
}

func TestConcurrentRequests(t *testing.T) {
	addr, _, _ := startServer(t, echo)
	c := connect(t, common.ClientConfig{
		Endpoints:              []string{addr},
		TimeoutSecond:          2,
		RetryCount:             1,
		ConnectionsPerEndpoint: 2,
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Send(uint64(i), []byte(fmt.Sprintf("req-%d", i)))
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprintf("%d:req-%d", i, i), string(resp))
			}
		}(i)
	}
	wg.Wait()
}

func TestRequestLargerThanBuffer(t *testing.T) {
	addr, _, _ := startServer(t, func(_ uint64, req []byte) []byte { return req })
	c := connect(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 2})

	payload := bytes.Repeat([]byte("x"), 100*1024)
	resp, err := c.Send(1, payload)
	require.NoError(t, err)
	assert.Equal(t, payload, resp)
}

func TestEndpointPrefix(t *testing.T) {
	addr, _, _ := startServer(t, echo)
	c := connect(t, common.ClientConfig{Endpoints: []string{"loop://" + addr}, TimeoutSecond: 2})

	resp, err := c.Send(3, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "3:x", string(resp))
}

func TestRequestTimeout(t *testing.T) {
	addr, _, _ := startServer(t, func(_ uint64, req []byte) []byte {
		time.Sleep(1500 * time.Millisecond)
		return req
	})
	c := connect(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 1, RetryCount: 1})

	_, err := c.Send(1, []byte("slow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestShutdown(t *testing.T) {
	addr, srv, done := startServer(t, echo)
	c := connect(t, common.ClientConfig{Endpoints: []string{addr}, TimeoutSecond: 1, RetryCount: 1})

	_, err := c.Send(1, []byte("before"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Shutdown")
	}

	_, err = c.Send(1, []byte("after"))
	assert.Error(t, err)

	// a second Listen after Shutdown returns immediately
	assert.NoError(t, srv.Listen(common.ServerConfig{Endpoint: addr}))
}

func TestConnectErrors(t *testing.T) {
	c := NewBaseClientTransport(&loopbackClient{})
	assert.Error(t, c.Connect(common.ClientConfig{}))

	// a port nobody listens on
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	err = c.Connect(common.ClientConfig{Endpoints: []string{addr}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), addr))

	_, err = c.Send(1, nil)
	assert.Error(t, err, "send without connections")
}
