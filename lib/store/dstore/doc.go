// Package dstore implements a distributed, fault-tolerant binding record store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the store.IStore interface that can operate across multiple nodes while
// maintaining linearizable consistency.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.IStore interface and communicates with
//     the RAFT cluster. It serializes operations into commands, sends them to the
//     consensus layer, and processes responses.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that processes
//     commands and queries on each node. The state machine contains the actual db.RecordDB
//     instance and applies operations to it.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic for transmitting operations across
//     the network.
//
// Every replica holds the same binding table. A raft majority (2N+1 replicas tolerate
// N failures) must accept a write before it is applied, and it is applied in log order
// on every replica.
//
// Write Operations:
//
//	All write operations (CreateIfAbsent, Put, CompareAndSwap, CompareAndDelete, Delete)
//	follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is executed on the state machine on each node (Update method in statemachine.go)
//	5. The result (applied flag plus the record now stored under the key) is returned to the client
//
//	The write index for all operations is provided by the RAFT log index. It becomes the
//	Version of the written record, so versions are unique and identical on every replica,
//	and a compare-and-swap decided on one node is decided the same way on all of them.
//
// Read Operations:
//
// Read operations (Get, ListUsersWithBindings, GetDBInfo) can be handled in two ways:
//
//   - Linearizable Reads: By default, reads use SyncRead which ensures that the node
//     processing the read has applied all committed log entries locally before processing
//     the request. This guarantees the operation sees the latest committed state of the
//     database, regardless of which node in the cluster processes the read.
//
//   - Stale Reads: For less critical operations (GetDBInfo), StaleRead is used,
//     which may return slightly outdated information but with lower latency.
//
// Error Handling and Retries:
//
//	ErrSystemBusy from dragonboat is retried a few times with a short pause. Every
//	proposal and read runs under the store timeout. Commands an engine does not
//	support (see db.Feature) fail with RetCUnsupportedOperation.
//
// Snapshotting and Recovery:
//
// The state machine implements Dragonboat's snapshotting interface to persist its state:
//
//   - Snapshots: PrepareSnapshot runs while no command is applied and serializes the
//     database with its Save method, so every snapshot is a consistent cut at a log index.
//     SaveSnapshot then writes these bytes while new commands are applied again.
//
//   - Recovery: On startup or when joining a cluster, nodes first restore their state
//     from the most recent snapshot using the db.RecordDB's Load method. Then, they receive
//     all RAFT log entries that were committed after the snapshot was created from other
//     nodes in the cluster. This two-phase process ensures that after recovery is complete,
//     the node reaches the same consistent state as all other nodes in the cluster.
//
// Usage:
//
//	Setting up and using dstore requires several steps:
//
//	1. Initialize Dragonboat NodeHost (RAFT client)
//	2. Create a db.RecordDB factory function
//	3. Start a RAFT replica with the state machine factory
//	4. Create the distributed store with appropriate timeout
//	5. Begin operations once the shard is ready
//
//	Example:
//
//	  // Create NodeHost (RAFT client)
//	  nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	  if err != nil { ... }
//
//	  // DB factory for store
//	  dbFactory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//
//	  // Create and start shard (RAFT server)
//	  err := nh.StartConcurrentReplica(
//	      clusterMembers,
//	      false,
//	      dstore.CreateStateMachineFactory(dbFactory),
//	      shardConfig)
//	  if err != nil { ... }
//
//	  // Create store with appropriate timeout
//	  timeout := time.Duration(5) * time.Second
//	  store := dstore.NewDistributedStore(nh, shardID, timeout)
//
//	  // Wait for shard readiness then begin operations
//	  // ...
//
// Conditional writes and the binding service:
//
//	The binding service never locks. It reads a record, decides, and writes back with
//	CompareAndSwap or CompareAndDelete against the version it read. On a replicated shard
//	the compare happens inside the state machine, so two nodes racing on one channel id
//	get one applied command and one rejected one, and the loser sees ErrConflict.
//
// For scenarios where distributed consensus is not required, consider using the simpler
// and faster lstore package, which provides a single-node not-persistent implementation of the
// same interface.
package dstore
