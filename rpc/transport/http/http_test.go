package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/lib/codegen"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple"
	"github.com/ValentinKolb/dBind/lib/store/lstore"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultShard = 100

// newGateway serves the routes of the transport with a dispatcher backed by a
// real binding service on the default shard
func newGateway(t *testing.T, codes ...string) *httptest.Server {
	t.Helper()

	svc := binding.NewService(
		lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) }),
		codegen.Fixed(codes...),
	)
	adapter := server.NewBindingServerAdapter()

	tr := &httpServerTransport{config: common.ServerConfig{DefaultShardID: defaultShard, LogLevel: "debug"}}
	tr.RegisterDispatcher(func(shardId uint64, req *common.Message) *common.Message {
		if shardId != defaultShard {
			return common.NewErrorResponse(common.ErrKindNoShard, "shard not found")
		}
		return adapter.Handle(req, svc)
	})
	tr.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte("echo:"), req...)
	})

	srv := httptest.NewServer(tr.routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func TestGatewayScenario(t *testing.T) {
	srv := newGateway(t, "CODE1", "CODE2")

	steps := []struct {
		path, body string
		status     int
		want       string
	}{
		{"/bind/new", `{"userId":"foo","gcmId":"bar"}`, http.StatusOK, "SENT"},
		{"/bind/new", `{"userId":"foo","gcmId":"bar"}`, http.StatusOK, "RESENT"},
		{"/bind/verify", `{"userId":"foo","gcmId":"bar","code":"CODE1"}`, http.StatusOK, "INVALID_CODE"},
		{"/bind/verify", `{"userId":"foo","gcmId":"bar","code":"CODE2"}`, http.StatusOK, "SUCCESS"},
		{"/bind/new", `{"userId":"foo2","gcmId":"bar"}`, http.StatusOK, "INVALID_USER"},
		{"/bind/update", `{"userId":"foo","oldGcmId":"bar","newGcmId":"bar2"}`, http.StatusOK, "SUCCESS"},
		{"/bind/update", `{"userId":"foo","oldGcmId":"bar","newGcmId":"bar2"}`, http.StatusOK, "NOT_FOUND"},
		{"/bind/query", `{"userIdList":["foo","foo2"]}`, http.StatusOK, `["foo"]`},
		{"/bind/del", `{"userId":"foo","gcmId":"bar2"}`, http.StatusOK, ""},
		{"/bind/query", `{"userIdList":["foo"]}`, http.StatusOK, `[]`},
		{"/shards/100/bind/query", `{"userIdList":["foo"]}`, http.StatusOK, `[]`},
	}

	for i, step := range steps {
		status, body := post(t, srv, step.path, step.body)
		assert.Equal(t, step.status, status, "step %d: %s %s", i, step.path, step.body)
		assert.Equal(t, step.want, body, "step %d: %s %s", i, step.path, step.body)
	}
}

func TestGatewayStatusMapping(t *testing.T) {
	srv := newGateway(t, "CODE")

	tests := []struct {
		name, path, body string
		status           int
	}{
		{"MalformedJSON", "/bind/new", `{"userId":`, http.StatusBadRequest},
		{"WrongFieldType", "/bind/new", `{"userId":42,"gcmId":"bar"}`, http.StatusBadRequest},
		{"MissingField", "/bind/new", `{"userId":"foo"}`, http.StatusBadRequest},
		{"EmptyField", "/bind/verify", `{"userId":"foo","gcmId":"bar","code":""}`, http.StatusBadRequest},
		{"EmptyQuery", "/bind/query", `{"userIdList":[]}`, http.StatusBadRequest},
		{"UnknownOp", "/bind/frobnicate", `{}`, http.StatusNotFound},
		{"UnknownShard", "/shards/7/bind/new", `{"userId":"foo","gcmId":"bar"}`, http.StatusNotFound},
		{"InvalidShard", "/shards/abc/bind/new", `{"userId":"foo","gcmId":"bar"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := post(t, srv, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestGatewayIgnoresResponseFieldsInBody(t *testing.T) {
	srv := newGateway(t, "CODE")

	status, body := post(t, srv, "/bind/new", `{"userId":"foo","gcmId":"bar","result":"SUCCESS","msg_type":"bindDel"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SENT", body)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(common.ErrKindInvalid))
	assert.Equal(t, http.StatusNotFound, statusForError(common.ErrKindNoShard))
	assert.Equal(t, http.StatusNotFound, statusForError(common.ErrKindUnsupported))
	assert.Equal(t, http.StatusConflict, statusForError(common.ErrKindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusForError(common.ErrKindInternal))
}

func TestConflictIs409(t *testing.T) {
	rec := httptest.NewRecorder()
	writeGatewayResponse(rec, &common.Message{
		MsgType: common.MsgTBindVerify,
		Err:     "binding was modified concurrently",
		ErrKind: common.ErrKindConflict,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newGateway(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// process metrics are always exposed
	assert.Contains(t, string(data), "go_goroutines")
}

func TestRPCEndpoint(t *testing.T) {
	srv := newGateway(t)

	status, body := post(t, srv, "/100", "payload")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo:payload", body)

	status, _ = post(t, srv, "/not-a-shard", "payload")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClientTransport(t *testing.T) {
	var shards []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shards = append(shards, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("ok:"), body...))
	}))
	defer srv.Close()

	tr := NewHttpClientTransport()
	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: []string{srv.URL + "/"}, TimeoutSecond: 2, RetryCount: 1}))
	defer tr.Close()

	resp, err := tr.Send(200, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ok:ping", string(resp))
	assert.Equal(t, []string{"/200"}, shards)
}

func TestClientTransportRetriesOtherEndpoint(t *testing.T) {
	var hits atomic.Int32
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer live.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	tr := NewHttpClientTransport()
	require.NoError(t, tr.Connect(common.ClientConfig{
		Endpoints:     []string{deadURL, live.URL},
		TimeoutSecond: 2,
		RetryCount:    2,
	}))
	defer tr.Close()

	for i := 0; i < 4; i++ {
		resp, err := tr.Send(1, []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "ok", string(resp))
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestClientTransportErrors(t *testing.T) {
	tr := NewHttpClientTransport()
	_, err := tr.Send(1, nil)
	assert.Error(t, err, "send before connect")

	assert.Error(t, tr.Connect(common.ClientConfig{}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer srv.Close()

	require.NoError(t, tr.Connect(common.ClientConfig{Endpoints: []string{srv.URL}, RetryCount: 3}))
	_, err = tr.Send(1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "418")
}

func TestQueryResponseIsJSONArray(t *testing.T) {
	rec := httptest.NewRecorder()
	writeGatewayResponse(rec, &common.Message{MsgType: common.MsgTBindQuery})

	var ids []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ids))
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestShutdownBeforeListen(t *testing.T) {
	tr := NewHttpServerTransport()
	require.NoError(t, tr.Shutdown(context.Background()))

	done := make(chan error, 1)
	go func() { done <- tr.Listen(common.ServerConfig{Endpoint: "127.0.0.1:0"}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen kept serving after Shutdown")
	}
}

func TestShutdownStopsListen(t *testing.T) {
	tr := NewHttpServerTransport().(*httpServerTransport)

	done := make(chan error, 1)
	go func() { done <- tr.Listen(common.ServerConfig{Endpoint: "127.0.0.1:0", TimeoutSecond: 1}) }()

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.server != nil
	}, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Shutdown")
	}
}
