package dstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/store"
	"github.com/ValentinKolb/dBind/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4/logger"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the concrete implementation of the distributed store.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the decoded result of the state machine or a *store.Error.
func (s *storeImpl) write(cmd internal.Command) (internal.CommandResult, error) {
	var res internal.CommandResult
	data := cmd.Serialize()

	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		smRes, err := s.nh.SyncPropose(ctx, s.cs, data)
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return res, store.NewError(store.RetCInternalError, err.Error())
		}
		if smRes.Value != uint64(store.RetCSuccess) {
			return res, store.NewError(store.RetCode(smRes.Value), string(smRes.Data))
		}
		if err := res.Deserialize(smRes.Data); err != nil {
			return res, store.NewError(store.RetCInternalError, err.Error())
		}
		return res, nil
	}
	return res, store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// Is the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and a error (nil on success).
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(channelID string) (db.Record, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type:      internal.QueryTGet,
		ChannelID: channelID,
	}, false)
	if err != nil {
		return db.Record{}, false, err
	}
	return res.Record, res.Ok, nil
}

func (s *storeImpl) CreateIfAbsent(rec db.Record) (db.Record, bool, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTInsert,
		Record: rec,
	})
	return res.Record, res.Applied, err
}

func (s *storeImpl) Put(rec db.Record) (db.Record, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTPut,
		Record: rec,
	})
	return res.Record, err
}

func (s *storeImpl) CompareAndSwap(rec db.Record, expectedVersion uint64) (db.Record, bool, error) {
	res, err := s.write(internal.Command{
		Type:            internal.CommandTCompareAndSwap,
		ExpectedVersion: expectedVersion,
		Record:          rec,
	})
	return res.Record, res.Applied, err
}

func (s *storeImpl) CompareAndDelete(channelID string, expectedVersion uint64) (bool, error) {
	res, err := s.write(internal.Command{
		Type:            internal.CommandTCompareAndDelete,
		ExpectedVersion: expectedVersion,
		Record:          db.Record{ChannelID: channelID},
	})
	return res.Applied, err
}

func (s *storeImpl) Delete(channelID string) (bool, error) {
	res, err := s.write(internal.Command{
		Type:   internal.CommandTDelete,
		Record: db.Record{ChannelID: channelID},
	})
	return res.Applied, err
}

func (s *storeImpl) ListUsersWithBindings(userIDs []string) ([]string, error) {
	return read[[]string](s, internal.Query{
		Type:    internal.QueryTListUsers,
		UserIDs: userIDs,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		true, // Note: allow for stale reads
	)
}
