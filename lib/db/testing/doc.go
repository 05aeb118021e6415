// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.RecordDB interface.
//
// The package contains:
//   - testing: A test suite for the RecordDB contract, including the concurrent
//     create-if-absent and compare-and-swap races and the consistency of the user index
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.RecordDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunRecordDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunRecordDBBenchmarks(b, "MyDatabase", factory)
package testing
