package dstore

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/store"
	"github.com/ValentinKolb/dBind/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"io"
	"time"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// BindingStateMachine is a state machine implementation for Dragonboat RAFT
type BindingStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.RecordDB // the actual dataStorage
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &BindingStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding RecordDB method.
func (fsm *BindingStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	// Handle different Query types
	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		rec, ok := fsm.database.Get(q.ChannelID)
		return internal.QueryResult{
			Record: rec,
			Ok:     ok,
		}, nil
	case internal.QueryTListUsers:
		if !fsm.database.SupportsFeature(db.FeatureUserIndex) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "UserIndex operation is not supported")
		}
		return fsm.database.UsersWithBindings(q.UserIDs), nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// apply executes a single command at the given raft index
func (fsm *BindingStateMachine) apply(cmd *internal.Command, index uint64) (internal.CommandResult, error) {
	var res internal.CommandResult

	switch cmd.Type {
	case internal.CommandTInsert:
		res.Record, res.Applied = fsm.database.Insert(cmd.Record, index)
		res.Found = true
	case internal.CommandTPut:
		res.Record = fsm.database.Put(cmd.Record, index)
		res.Applied, res.Found = true, true
	case internal.CommandTCompareAndSwap:
		res.Record, res.Found, res.Applied = fsm.database.CompareAndSwap(cmd.Record, cmd.ExpectedVersion, index)
	case internal.CommandTCompareAndDelete:
		res.Applied = fsm.database.CompareAndDelete(cmd.Record.ChannelID, cmd.ExpectedVersion, index)
	case internal.CommandTDelete:
		res.Applied = fsm.database.Delete(cmd.Record.ChannelID, index)
	default:
		return res, fmt.Errorf("unknown Command operation: %s", cmd.Type)
	}

	if !res.Found {
		res.Record = db.Record{}
	}
	return res, nil
}

// Update handles write commands on the RecordDB instance
// All write operations are serialized into []byte and are accessible via the entries struct
func (fsm *BindingStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	cmd := internal.Command{}
	for idx, e := range entries {
		// Handle each entry
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		// Deserialize the command
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		// Check if the db supports the operation
		feat, err := cmd.Type.ToDBFeature()
		if err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
			continue
		}
		if !fsm.database.SupportsFeature(feat) {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCUnsupportedOperation),
				Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
			}
			continue
		}

		res, err := fsm.apply(&cmd, e.Index)
		if err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(err.Error())}
			continue
		}
		entries[idx].Result = sm.Result{
			Value: uint64(store.RetCSuccess),
			Data:  res.Serialize(),
		}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is called by dragonboat while no Update is running.
// The database is serialized here so the snapshot is a consistent cut at the last applied index.
func (fsm *BindingStateMachine) PrepareSnapshot() (interface{}, error) {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return nil, fmt.Errorf("the used RecordDB implementation does not support Save() operations")
	}
	var buf bytes.Buffer
	if err := fsm.database.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveSnapshot writes the snapshot taken in PrepareSnapshot
func (fsm *BindingStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, done <-chan struct{}) error {
	data, ok := ctx.([]byte)
	if !ok {
		return fmt.Errorf("invalid snapshot context type: %T", ctx)
	}
	select {
	case <-done:
		return sm.ErrSnapshotStopped
	default:
	}
	_, err := writer.Write(data)
	return err
}

// RecoverFromSnapshot replaces the database content with the snapshot.
func (fsm *BindingStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used RecordDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *BindingStateMachine) Close() error {
	return fsm.database.Close()
}
