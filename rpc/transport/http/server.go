package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// maxBodyBytes bounds request bodies of both the gateway and the RPC endpoint
	maxBodyBytes = 1 << 20
	// defaultTimeout is used when the config has no timeout
	defaultTimeout = 5 * time.Second
)

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler    transport.ServerHandleFunc
	dispatcher transport.ServerDispatchFunc
	config     common.ServerConfig

	// mu guards server and closed, Shutdown may run before or during Listen
	mu     sync.Mutex
	server *http.Server
	closed bool
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) RegisterDispatcher(dispatcher transport.ServerDispatchFunc) {
	t.dispatcher = dispatcher
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.config = config

	timeout := config.Timeout()
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	srv := &http.Server{
		Addr:              config.Endpoint,
		Handler:           t.routes(),
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		// a dstore request may take the full raft timeout before the response is written
		WriteTimeout: 2 * timeout,
		IdleTimeout:  4 * timeout,
	}
	t.server = srv
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", config.Endpoint)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	srv := t.server
	t.mu.Unlock()

	if srv == nil {
		// Listen has not started yet and will return right away
		return nil
	}
	return srv.Shutdown(ctx)
}

// routes builds the request multiplexer
func (t *httpServerTransport) routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.HandlerFunc { return h }
	if t.config.LogLevel == "debug" {
		wrap = loggerMiddleware
	}

	mux.HandleFunc("POST /bind/{op}", wrap(t.handleGateway))
	mux.HandleFunc("POST /shards/{shardId}/bind/{op}", wrap(t.handleGateway))
	mux.HandleFunc("POST /{shardId}", wrap(t.handleRequest))
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		vm.WritePrometheus(w, true)
	})

	return mux
}

// --------------------------------------------------------------------------
// RPC endpoint
// --------------------------------------------------------------------------

// handleRequest handles serialized RPC requests and writes the serialized response
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Parse shardId from request
	shardId, err := strconv.ParseUint(r.PathValue("shardId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid shardId", http.StatusBadRequest)
		return
	}

	// Read request body
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	// Send to the handler
	resp := t.handler(shardId, body)

	// Write response
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// JSON gateway
// --------------------------------------------------------------------------

// handleGateway serves POST /bind/{op} on the default shard and
// POST /shards/{shardId}/bind/{op} on an explicit one
func (t *httpServerTransport) handleGateway(w http.ResponseWriter, r *http.Request) {
	msgType, ok := common.MessageTypeForOp(r.PathValue("op"))
	if !ok {
		http.Error(w, fmt.Sprintf("unknown operation %q", r.PathValue("op")), http.StatusNotFound)
		return
	}

	shardId := t.config.DefaultShardID
	if raw := r.PathValue("shardId"); raw != "" {
		var err error
		if shardId, err = strconv.ParseUint(raw, 10, 64); err != nil {
			http.Error(w, "Invalid shardId", http.StatusBadRequest)
			return
		}
	}

	var req common.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// only the request fields of the body count
	req = common.Message{
		MsgType:      msgType,
		UserID:       req.UserID,
		ChannelID:    req.ChannelID,
		OldChannelID: req.OldChannelID,
		NewChannelID: req.NewChannelID,
		Code:         req.Code,
		UserIDs:      req.UserIDs,
	}

	resp := t.dispatcher(shardId, &req)
	writeGatewayResponse(w, resp)
}

// writeGatewayResponse writes the plain result code, an empty body or the query list
func writeGatewayResponse(w http.ResponseWriter, resp *common.Message) {
	if resp.ErrKind != common.ErrKindNone || resp.MsgType == common.MsgTError {
		http.Error(w, resp.Err, statusForError(resp.ErrKind))
		return
	}

	switch resp.MsgType {
	case common.MsgTBindDel:
		w.WriteHeader(http.StatusOK)

	case common.MsgTBindQuery:
		userIDs := resp.UserIDs
		if userIDs == nil {
			userIDs = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(userIDs); err != nil {
			Logger.Warningf("failed to write response: %v", err)
		}

	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := io.WriteString(w, resp.Result.String()); err != nil {
			Logger.Warningf("failed to write response: %v", err)
		}
	}
}

// statusForError maps the error class of a response to an HTTP status
func statusForError(kind common.ErrorKind) int {
	switch kind {
	case common.ErrKindInvalid:
		return http.StatusBadRequest
	case common.ErrKindNoShard, common.ErrKindUnsupported:
		return http.StatusNotFound
	case common.ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
