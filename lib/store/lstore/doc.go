// Package lstore implements a local, in-memory, single-node binding record store based on
// the store.IStore interface. It is a thin wrapper around any db.RecordDB implementation
// with automatic write index management. Data is stored entirely in memory and is not
// persisted between process restarts.
//
// Implementation Details:
//
//   - Write Index Management: The store keeps an atomic counter that is incremented for
//     each write. The new value is handed to the database as the write index and becomes
//     the Version of the written record, so versions are unique for the lifetime of the store.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.RecordDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return RetCUnsupportedOperation.
//
//   - Atomicity: CreateIfAbsent, CompareAndSwap and CompareAndDelete are passed through to the
//     database, which decides them inside its per-key critical section.
//
// Usage Example:
//
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	rec, created, err := s.CreateIfAbsent(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusPending, Code: code})
//
// For multi-node deployments use the dstore package, which offers the same interface
// on top of RAFT.
package lstore
