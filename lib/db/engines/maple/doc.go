// Package maple implements an in-memory binding record database with sharded
// data and a secondary index by user id. It provides a complete implementation of
// the db.RecordDB interface with a focus on thread safety and low contention.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.RecordDB. It manages shards
//     and the user index and provides the public API for record operations.
//     The mapleImpl structure does not generate write indices itself. The caller supplies one
//     per write (the RAFT log index, an atomic counter, ...) and it becomes the Version of the
//     written record.
//
//   - Shard: A partition of the record table. Channel ids are spread over shards with a
//     seeded FNV-1a hash, shifted right by 7 bits to use the higher-quality bits.
//
//   - UserIndex: Counts the records per user id. It is changed only from inside the
//     Compute callback of the record being written, so a record and its index entry
//     always change together.
//
// Internal Mechanisms:
//
//   - Single-key atomicity: Every write runs as one xsync.MapOf Compute call. The decision
//     (insert, swap, delete or keep) is taken inside that call, which makes create-if-absent,
//     compare-and-swap and compare-and-delete linearizable per channel id.
//
//   - Lock order: The record map lock is always taken before the user index lock and never
//     the other way round.
//
//   - Persistence Format:
//     1. Magic number "MAPLEDB\x00" to identify the file format
//     2. Version number (currently 4)
//     3. Database seed value for hash function consistency
//     4. Number of records
//     5. For each record: 4 bytes length followed by the encoded db.Record
//     Save takes a fuzzy snapshot without blocking writers. Callers needing a consistent
//     cut (the raft state machine) call Save while no writes are applied.
//
//   - Metrics: GetInfo reports record counts, the pending/verified split, the number of users
//     and shard balance statistics collected with go-metrics histograms.
package maple
