package unix

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath returns a short path, unix socket paths are limited to about 100 bytes
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dbind")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "rpc.sock")
}

func serve(t *testing.T, path string) chan error {
	t.Helper()

	srv := NewUnixServerTransport()
	srv.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte("ok:"), req...)
	})

	done := make(chan error, 1)
	go func() { done <- srv.Listen(common.ServerConfig{Endpoint: path, TimeoutSecond: 2}) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return done
}

func TestRoundTrip(t *testing.T) {
	path := socketPath(t)
	serve(t, path)

	c := NewUnixClientTransport()
	require.NoError(t, c.Connect(common.ClientConfig{Endpoints: []string{"unix://" + path}, TimeoutSecond: 2}))
	defer c.Close()

	resp, err := c.Send(100, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "ok:ping", string(resp))
}

func TestReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)

	// a socket file left behind by a crashed server
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
	_, err = os.Stat(path)
	require.NoError(t, err)

	serve(t, path)
}

func TestRefusesToRemoveRegularFile(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	err := NewUnixServerTransport().Listen(common.ServerConfig{Endpoint: path})
	assert.ErrorContains(t, err, "not a socket")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}
