// Package util provides small helpers shared by implementations of db.RecordDB
// and by the command line (replica ids are hashed with the same function).
//
// The package contains:
//   - GenerateSeed: a random seed so every database instance spreads keys differently
//   - HashString: seeded FNV-1a hashing of string keys
//   - ShardIndex: mapping of a key hash to a shard position
package util
