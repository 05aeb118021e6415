// Package store provides a high-level interface for binding record storage with
// single-key atomic primitives and unified error handling.
// It serves as an abstraction layer over the lower-level db.RecordDB implementations, adding
// write index management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Besides plain reads and writes it offers
//     CreateIfAbsent, CompareAndSwap and CompareAndDelete, which are the only means of
//     concurrency control the binding layer relies on. Every write stamps the record with
//     a fresh Version that callers use as the compare value.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. *Error implements Is, so
//     errors.Is(err, store.NewError(store.RetCConflict, "")) matches on the code.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.RecordDB
//     instances.
//
// Implementations:
//
//	- Local Store (lstore): a single-node implementation that calls a db.RecordDB directly
//	  and draws write indices from an atomic counter.
//	  Available in the "github.com/ValentinKolb/dBind/lib/store/lstore" package.
//
//	- Distributed Store (dstore): an implementation built on the Dragonboat RAFT
//	  consensus library. Every write is a raft command, reads are linearizable.
//	  Available in the "github.com/ValentinKolb/dBind/lib/store/dstore" package.
//
// Both implementations are validated by the shared suite in
// "github.com/ValentinKolb/dBind/lib/store/testing".
package store
