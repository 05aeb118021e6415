// Package db provides a standardized interface for binding record database implementations.
// It defines the RecordDB interface that allows for consistent interaction
// with various database backends while abstracting implementation details.
//
// The package focuses on:
//   - The Record type (a user id bound to a push channel id) and its binary encoding
//   - Atomic single-key primitives: create-if-absent, compare-and-swap, compare-and-delete
//   - A secondary index from user id to the records a user owns
//   - Feature discovery through capability flags
//   - Standardized persistence operations and metadata reporting
//
// Key Components:
//
//   - RecordDB Interface: The core interface that all database implementations must satisfy.
//     Records are keyed by channel id. Every write is atomic with respect to that key, and
//     the user index is updated in the same critical section as the record itself, so readers
//     never observe a record without its index entry.
//
//   - Record: A binding between a user id and a channel id, with a status (pending or verified),
//     the one-time verification code while pending, and a Version that the database stamps
//     on every write. The Version is the compare value for conditional operations.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports record counts, the
//     pending/verified split and implementation-specific metadata. Size figures are estimates.
//
// Note on Write Indices:
//   - All write operations require a write-index parameter. It becomes the Version of the
//     written record and advances the database's logical clock.
//   - Callers must supply a unique index per write (the RAFT log index in dstore, an atomic
//     counter in lstore). Uniqueness is what makes version comparisons safe: a record that was
//     deleted and recreated never carries the version of its predecessor.
//   - SetWriteIdx only ever moves the clock forward.
//
// Related Packages:
//
// The engines/maple package provides a sharded in-memory implementation of RecordDB.
//
// The testing package (github.com/ValentinKolb/dBind/lib/db/testing) provides
// standardized tests and benchmarks for implementations of the db.RecordDB interface.
//   - RunRecordDBTests: Runs a standardized test suite to validate implementations
//   - RunRecordDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
