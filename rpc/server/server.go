package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple"
	"github.com/ValentinKolb/dBind/lib/store"
	"github.com/ValentinKolb/dBind/lib/store/dstore"
	"github.com/ValentinKolb/dBind/lib/store/lstore"
	"github.com/ValentinKolb/dBind/rpc/common"
	"github.com/ValentinKolb/dBind/rpc/serializer"
	"github.com/ValentinKolb/dBind/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// shutdownGrace is how long in-flight requests may take after a stop signal
const shutdownGrace = 10 * time.Second

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the binding service on top of it
type serverShard struct {
	Store   store.IStore
	Service binding.IService
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewBindingServerAdapter(),
		shards:     xsync.NewMapOf[uint64, serverShard](),
		dbFactory:  func() db.RecordDB { return maple.NewMapleDB(nil) },
	}
}

// RPCServer serves the binding operations of all configured shards over one transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	shards     *xsync.MapOf[uint64, serverShard]
	dbFactory  store.DBFactory
	nodeHost   *dragonboat.NodeHost
}

// dispatch routes a decoded request to the shard's binding service
func (s *RPCServer) dispatch(shardId uint64, req *common.Message) *common.Message {
	start := time.Now()

	// Get appropriate shard
	shard, ok := s.shards.Load(shardId)
	if !ok {
		resp := common.NewErrorResponse(common.ErrKindNoShard, fmt.Sprintf("shard %d not found", shardId))
		observeRequest(req, resp, start)
		return resp
	}

	// Let the adapter handle the request
	resp := s.adapter.Handle(req, shard.Service)
	observeRequest(req, resp, start)

	if resp.ErrKind == common.ErrKindInternal {
		Logger.Errorf("shard %d: %s failed: %s", shardId, req.MsgType, resp.Err)
	}
	return resp
}

// handleRaw decodes a serialized request, dispatches it and serializes the response
func (s *RPCServer) handleRaw(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(common.ErrKindInvalid, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		respMsg = s.dispatch(shardId, &msg)
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		// the error message only carries a short string, it always serializes
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			common.ErrKindInternal,
			fmt.Sprintf("failed to serialize response: %s", err),
		))
	}
	return val
}

func (s *RPCServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	if len(s.config.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}
	if !s.config.HasShard(s.config.DefaultShardID) {
		return fmt.Errorf("default shard %d is not one of the configured shards", s.config.DefaultShardID)
	}

	// Create the Dragonboat NodeHost
	if s.config.HasRemoteShard() {
		// Only create the NodeHost if we have remote shards
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of remote and or local shards.
		Each shard is an independent binding table with its own store.
	*/

	for _, shardConfig := range s.config.Shards {
		if _, exists := s.shards.Load(shardConfig.ShardID); exists {
			return fmt.Errorf("shard %d configured twice", shardConfig.ShardID)
		}

		var st store.IStore
		switch shardConfig.Type {
		case common.ShardTypeLocal:
			st = lstore.NewLocalStore(s.dbFactory)
			Logger.Infof("created local store for shard %d", shardConfig.ShardID)

		case common.ShardTypeRemote:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create remote store")
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers,
				false,
				dstore.CreateStateMachineFactory(s.dbFactory),
				s.config.ToDragonboatConfig(shardConfig.ShardID),
			); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			st = dstore.NewDistributedStore(s.nodeHost, shardConfig.ShardID, s.config.Timeout())
			Logger.Infof("started raft replica for shard %d", shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Service: binding.NewService(st, nil),
		})
	}

	Logger.Infof("dBind setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handleRaw)
	s.transport.RegisterDispatcher(s.dispatch)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer.
// It blocks until the transport fails or the process receives SIGINT or SIGTERM.
func (s *RPCServer) Serve() error {
	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	if err := s.init(); err != nil {
		s.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.transport.Listen(s.config) }()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
		Logger.Infof("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := s.transport.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close stops all raft replicas of this node
func (s *RPCServer) Close() {
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}
