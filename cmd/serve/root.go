package serve

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/ValentinKolb/dBind/cmd/util"
	"github.com/ValentinKolb/dBind/lib/db/util"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dBind server",
		Long:    `Start the dBind server with the specified configuration. The configuration can be set via command line flags, environment variables or a config file. The format of the environment variables is DBIND_<flag> (e.g. DBIND_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=lstore", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: lstore (in memory), dstore (raft replicated)"))

	key = "default-shard"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Shard used by the /bind/{op} gateway routes (default: the first shard of --shards)"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(dstore) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("(dstore) SnapshotEntries defines how often the state machine should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 500, cmdUtil.WrapString("(dstore) CompactionOverhead defines the number of log entries to keep after a snapshot, so slow followers can catch up without a full snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(dstore) DataDir is the directory used for storing the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(dstore) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds of raft requests and of reading or writing an HTTP request"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, or a socket path for the unix transport)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	config, err := buildConfig()
	if err != nil {
		return err
	}
	*serveCmdConfig = config
	return nil
}

// buildConfig converts the values known to viper into a server configuration
func buildConfig() (common.ServerConfig, error) {
	var config common.ServerConfig

	// parse shards
	shards, err := parseShards(viper.GetString("shards"))
	if err != nil {
		return config, err
	}
	config.Shards = shards

	// default shard: explicit or the first one
	config.DefaultShardID = shards[0].ShardID
	if viper.IsSet("default-shard") {
		config.DefaultShardID = viper.GetUint64("default-shard")
	}
	if !config.HasShard(config.DefaultShardID) {
		return config, fmt.Errorf("default shard %d is not in --shards", config.DefaultShardID)
	}

	// read the configuration from the command line flags and environment variables
	config.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	config.SnapshotEntries = viper.GetUint64("snapshot-entries")
	config.CompactionOverhead = viper.GetUint64("compaction-overhead")
	config.DataDir = viper.GetString("data-dir")
	config.TimeoutSecond = viper.GetInt64("timeout")
	config.Endpoint = viper.GetString("endpoint")
	config.LogLevel = viper.GetString("log-level")

	if _, err := common.ParseLogLevel(config.LogLevel); err != nil {
		return config, err
	}

	// raft settings only matter for replicated shards
	if !config.HasRemoteShard() {
		return config, nil
	}

	// parse replica id
	id := viper.GetString("replica-id")
	if id == "" {
		return config, fmt.Errorf("ReplicaId is required for dstore shards")
	}
	config.ReplicaID = util.HashString(id, 0)

	// parse cluster members
	if config.ClusterMembers, err = parseClusterMembers(viper.GetString("cluster-members")); err != nil {
		return config, err
	}

	// test if the replica id is in the cluster members
	if _, ok := config.ClusterMembers[config.ReplicaID]; !ok {
		return config, fmt.Errorf("no address found for replica ID %s in cluster members", id)
	}

	return config, nil
}

// parseShards parses a list like "100=lstore,200=dstore"
func parseShards(list string) ([]common.ServerShard, error) {
	var shards []common.ServerShard
	seen := make(map[uint64]bool)

	for _, shardConfig := range strings.Split(list, ",") {
		if strings.TrimSpace(shardConfig) == "" {
			continue
		}
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("shard %d is listed twice", shardID)
		}
		seen[shardID] = true

		// Parse shard type
		shardType, err := common.ParseShardType(parts[1])
		if err != nil {
			return nil, err
		}

		shards = append(shards, common.ServerShard{
			ShardID: shardID,
			Type:    shardType,
		})
	}

	if len(shards) == 0 {
		return nil, fmt.Errorf("at least one shard is required")
	}
	return shards, nil
}

// parseClusterMembers parses "node-1=host:port,..." into replica id hashes and raft addresses
func parseClusterMembers(list string) (map[uint64]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("ClusterMembers is required for dstore shards")
	}

	members := make(map[uint64]string)
	for _, member := range strings.Split(list, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[util.HashString(strings.TrimSpace(parts[0]), 0)] = strings.TrimSpace(parts[1])
	}
	return members, nil
}

// run starts the dBind server
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
