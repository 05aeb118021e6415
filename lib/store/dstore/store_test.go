package dstore

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple"
	"github.com/ValentinKolb/dBind/lib/store"
	storetesting "github.com/ValentinKolb/dBind/lib/store/testing"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/config"
	"github.com/stretchr/testify/require"
)

// startNodeHost starts a single node host in a temp dir on a free loopback port
func startNodeHost(t *testing.T) (*dragonboat.NodeHost, string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	dir := t.TempDir()
	nh, err := dragonboat.NewNodeHost(config.NodeHostConfig{
		WALDir:         dir,
		NodeHostDir:    dir,
		RTTMillisecond: 10,
		RaftAddress:    addr,
	})
	require.NoError(t, err)
	t.Cleanup(nh.Close)
	return nh, addr
}

// startShard starts a single replica of shardID and waits until it is leader
func startShard(t *testing.T, nh *dragonboat.NodeHost, addr string, shardID uint64) {
	t.Helper()

	err := nh.StartConcurrentReplica(
		map[uint64]dragonboat.Target{1: addr},
		false,
		CreateStateMachineFactory(func() db.RecordDB { return maple.NewMapleDB(nil) }),
		config.Config{
			ReplicaID:    1,
			ShardID:      shardID,
			ElectionRTT:  10,
			HeartbeatRTT: 1,
			CheckQuorum:  true,
		},
	)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		leader, _, ok, err := nh.GetLeaderID(shardID)
		return err == nil && ok && leader == 1
	}, 10*time.Second, 20*time.Millisecond, "shard %d elected no leader", shardID)
}

func TestDistributedStore(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a raft node host")
	}

	nh, addr := startNodeHost(t)

	// every store of the suite gets its own, empty shard
	var nextShard atomic.Uint64
	nextShard.Store(100)

	storetesting.RunStoreTests(t, "DistributedStore", func() store.IStore {
		shardID := nextShard.Add(1)
		startShard(t, nh, addr, shardID)
		return NewDistributedStore(nh, shardID, 5*time.Second)
	})
}

func TestDistributedStoreUnknownShard(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a raft node host")
	}

	nh, _ := startNodeHost(t)
	s := NewDistributedStore(nh, 999, time.Second)

	_, err := s.Put(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusPending})
	require.True(t, storetesting.IsCode(err, store.RetCInternalError), "got %v", err)

	_, _, err = s.Get("gcm-1")
	require.Error(t, err)
}
