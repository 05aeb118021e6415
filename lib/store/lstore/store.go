package lstore

import (
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/store"
	"sync/atomic"
)

type storeImpl struct {
	db    db.RecordDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the maple engine from the db package directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// require returns an UnsupportedOperation error if the database lacks feature
func (s *storeImpl) require(feature db.Feature) error {
	if !s.db.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, feature.String()+" operation is not supported")
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(channelID string) (db.Record, bool, error) {
	if err := s.require(db.FeatureGet); err != nil {
		return db.Record{}, false, err
	}
	rec, ok := s.db.Get(channelID)
	return rec, ok, nil
}

func (s *storeImpl) CreateIfAbsent(rec db.Record) (db.Record, bool, error) {
	if err := s.require(db.FeatureInsert); err != nil {
		return db.Record{}, false, err
	}
	current, created := s.db.Insert(rec, s.incAndGetIndex())
	return current, created, nil
}

func (s *storeImpl) Put(rec db.Record) (db.Record, error) {
	if err := s.require(db.FeaturePut); err != nil {
		return db.Record{}, err
	}
	return s.db.Put(rec, s.incAndGetIndex()), nil
}

func (s *storeImpl) CompareAndSwap(rec db.Record, expectedVersion uint64) (db.Record, bool, error) {
	if err := s.require(db.FeatureCompareAndSwap); err != nil {
		return db.Record{}, false, err
	}
	current, _, swapped := s.db.CompareAndSwap(rec, expectedVersion, s.incAndGetIndex())
	return current, swapped, nil
}

func (s *storeImpl) CompareAndDelete(channelID string, expectedVersion uint64) (bool, error) {
	if err := s.require(db.FeatureCompareAndDelete); err != nil {
		return false, err
	}
	return s.db.CompareAndDelete(channelID, expectedVersion, s.incAndGetIndex()), nil
}

func (s *storeImpl) Delete(channelID string) (bool, error) {
	if err := s.require(db.FeatureDelete); err != nil {
		return false, err
	}
	return s.db.Delete(channelID, s.incAndGetIndex()), nil
}

func (s *storeImpl) ListUsersWithBindings(userIDs []string) ([]string, error) {
	if err := s.require(db.FeatureUserIndex); err != nil {
		return nil, err
	}
	return s.db.UsersWithBindings(userIDs), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
