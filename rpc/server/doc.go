// Package server implements the RPC server of the binding service.
// It owns the shards of a node, builds a binding.Service on top of each shard's
// store and routes requests from the transport to them.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface for adapters that turn a request Message into a
//     call on a binding.IService.
//
//   - NewBindingServerAdapter: The adapter for the binding operations. It validates
//     required fields and looks the operation up in a dispatch table keyed by
//     common.MessageType. Missing fields produce an ErrKindInvalid response, which the
//     gateway answers with 400.
//
//   - NewRPCServer: Creates a server with the given transport and serializer.
//     Serve initializes the shards, starts the transport and shuts down gracefully
//     on SIGINT or SIGTERM.
//
//   - Metrics: every dispatched request is counted in VictoriaMetrics counters and a
//     duration histogram labelled with the operation (see metrics.go).
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocal},
//	    {ShardID: 200, Type: common.ShardTypeRemote},
//	  },
//	  DefaultShardID: 100,
//	  Endpoint:       "0.0.0.0:8080",
//	  TimeoutSecond:  5,
//	  LogLevel:       "info",
//	  // RAFT settings for shard 200 ...
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shard types:
//
//   - ShardTypeLocal ("lstore"): an in-process store. State is lost on restart.
//
//   - ShardTypeRemote ("dstore"): a store replicated with Raft. RTTMillisecond,
//     SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and ClusterMembers
//     must be configured.
//
// Thread Safety:
//
//	Requests are handled concurrently. Serve must be called only once.
package server
