package serve

import (
	"testing"

	"github.com/ValentinKolb/dBind/lib/db/util"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShards(t *testing.T) {
	shards, err := parseShards("100=lstore, 200 = dstore")
	require.NoError(t, err)
	assert.Equal(t, []common.ServerShard{
		{ShardID: 100, Type: common.ShardTypeLocal},
		{ShardID: 200, Type: common.ShardTypeRemote},
	}, shards)

	for _, bad := range []string{"", "100", "abc=lstore", "100=redis", "100=lstore,100=dstore"} {
		_, err := parseShards(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := parseClusterMembers("node-1=localhost:63001,node-2=localhost:63002")
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, "localhost:63001", members[util.HashString("node-1", 0)])

	for _, bad := range []string{"", "node-1", "node-1="} {
		_, err := parseClusterMembers(bad)
		assert.Error(t, err, bad)
	}
}

func setFlags(t *testing.T, values map[string]any) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	// defaults as registered on the flags
	viper.SetDefault("log-level", "info")
	viper.SetDefault("timeout", 5)
	for k, v := range values {
		viper.Set(k, v)
	}
}

func TestBuildConfigLocal(t *testing.T) {
	setFlags(t, map[string]any{"shards": "100=lstore,200=lstore", "endpoint": "localhost:9000"})

	config, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), config.DefaultShardID)
	assert.Equal(t, "localhost:9000", config.Endpoint)
	assert.False(t, config.HasRemoteShard())
}

func TestBuildConfigDefaultShard(t *testing.T) {
	setFlags(t, map[string]any{"shards": "100=lstore,200=lstore", "default-shard": 200})
	config, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(200), config.DefaultShardID)

	setFlags(t, map[string]any{"shards": "100=lstore", "default-shard": 300})
	_, err = buildConfig()
	assert.Error(t, err)
}

func TestBuildConfigRemote(t *testing.T) {
	setFlags(t, map[string]any{
		"shards":          "100=dstore",
		"replica-id":      "node-2",
		"cluster-members": "node-1=localhost:63001,node-2=localhost:63002",
	})

	config, err := buildConfig()
	require.NoError(t, err)
	assert.Equal(t, util.HashString("node-2", 0), config.ReplicaID)
	assert.Equal(t, "localhost:63002", config.ClusterMembers[config.ReplicaID])

	setFlags(t, map[string]any{"shards": "100=dstore", "cluster-members": "node-1=localhost:63001"})
	_, err = buildConfig()
	assert.Error(t, err, "missing replica id")

	setFlags(t, map[string]any{
		"shards":          "100=dstore",
		"replica-id":      "node-3",
		"cluster-members": "node-1=localhost:63001",
	})
	_, err = buildConfig()
	assert.Error(t, err, "replica not a member")
}

func TestBuildConfigLogLevel(t *testing.T) {
	setFlags(t, map[string]any{"shards": "100=lstore", "log-level": "loud"})
	_, err := buildConfig()
	assert.Error(t, err)
}
