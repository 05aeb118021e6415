package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// IServerConnector creates the listener of a concrete socket type
type IServerConnector interface {
	// Listen creates a listener on config.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies socket options to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// serverTransport serves framed requests on every accepted connection.
// Requests of one connection are handled by up to maxWorkersPerConn goroutines,
// responses carry the request id so the client can match them.
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	config            common.ServerConfig
	bufferPool        *sync.Pool
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	connWG   sync.WaitGroup
}

// NewBaseServerTransport creates a server transport on top of connector.
// bufferSize is the size of pooled read buffers, larger requests allocate.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	return &serverTransport{
		connector:         connector,
		maxWorkersPerConn: max(maxWorkersPerConn, 1),
		conns:             make(map[net.Conn]struct{}),
		bufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, max(bufferSize, headerSize))
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

// RegisterDispatcher does nothing: socket transports only carry serialized requests,
// the JSON gateway and /metrics are served by the http transport.
func (t *serverTransport) RegisterDispatcher(transport.ServerDispatchFunc) {
	Logger.Infof("%s transport: JSON gateway and metrics are only available with the http transport", t.connector.GetName())
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), config.Endpoint, t.maxWorkersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.isClosed() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		if !t.track(conn) {
			_ = conn.Close()
			return nil
		}
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	if t.listener != nil {
		_ = t.listener.Close()
	}
	// stop reading new requests, running workers still write their responses
	for conn := range t.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.connWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		for conn := range t.conns {
			_ = conn.Close()
		}
		t.mu.Unlock()
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// track registers an accepted connection, it fails once the transport is shut down
func (t *serverTransport) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conns[conn] = struct{}{}
	t.connWG.Add(1)
	return true
}

func (t *serverTransport) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	t.connWG.Done()
}

// handleConnection reads requests of one connection until it is closed
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.untrack(conn)
	defer conn.Close()

	timeout := t.config.Timeout()

	// counting semaphore for the workers of this connection
	workers := make(chan struct{}, t.maxWorkersPerConn)
	var wg sync.WaitGroup

	// responses of concurrent workers must not interleave
	var writeMu sync.Mutex

	respond := func(shardID, requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(shardID, data)
		Logger.Debugf("Processed request %d for shard %d in %s", requestID, shardID, time.Since(start))

		writeMu.Lock()
		defer writeMu.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}
		if err := writeFrame(conn, shardID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

read:
	for {
		// idle connections are dropped after a while, clients reconnect
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(4 * timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				break
			}
		}

		buf := t.bufferPool.Get().([]byte)
		shardID, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			switch {
			case errors.Is(err, io.EOF):
				Logger.Debugf("Connection closed by client")
			case t.isClosed():
			default:
				Logger.Warningf("Closing connection from %s: %v", conn.RemoteAddr(), err)
			}
			break read
		}

		workers <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workers
				wg.Done()
			}()
			respond(shardID, requestID, data)
		}()
	}

	// in-flight requests finish before the connection is closed
	wg.Wait()
}
