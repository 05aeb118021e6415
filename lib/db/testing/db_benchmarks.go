package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dBind/lib/db"
)

// RunRecordDBBenchmarks runs performance benchmarks for a RecordDB implementation.
func RunRecordDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Insert", func(b *testing.B) {
			benchmarkInsert(b, factory())
		})

		b.Run("InsertExisting", func(b *testing.B) {
			benchmarkInsertExisting(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("CompareAndSwap", func(b *testing.B) {
			benchmarkCompareAndSwap(b, factory())
		})

		b.Run("UsersWithBindings", func(b *testing.B) {
			benchmarkUsersWithBindings(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// populate fills the database with n verified records spread over n/4 users
func populate(database db.RecordDB, n int, idx *atomic.Uint64) []string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("channel-%d", i)
		database.Put(verified(keys[i], fmt.Sprintf("user-%d", i/4)), idx.Add(1))
	}
	return keys
}

// Benchmark for Insert of new records
func benchmarkInsert(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	var idx atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := idx.Add(1)
			database.Insert(pending(fmt.Sprintf("channel-%d", i), "user", "CODE"), i)
		}
	})
}

// Benchmark for Insert on records that already exist (the losing side of a race)
func benchmarkInsertExisting(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeaturePut)

	var idx atomic.Uint64
	numKeys := 10_000
	keys := populate(database, numKeys, &idx)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Insert(pending(keys[counter%numKeys], "user", "CODE"), idx.Add(1))
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeaturePut)

	var idx atomic.Uint64
	numKeys := 10_000
	keys := populate(database, numKeys, &idx)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(keys[counter%numKeys])
			counter++
		}
	})
}

// Benchmark for read-modify-write cycles through CompareAndSwap
func benchmarkCompareAndSwap(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeaturePut|db.FeatureCompareAndSwap)

	var idx atomic.Uint64
	numKeys := 10_000
	keys := populate(database, numKeys, &idx)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			rec, found := database.Get(keys[counter%numKeys])
			if found {
				database.CompareAndSwap(rec, rec.Version, idx.Add(1))
			}
			counter++
		}
	})
}

// Benchmark for the user index lookup with a batch of ten users
func benchmarkUsersWithBindings(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureUserIndex|db.FeaturePut)

	var idx atomic.Uint64
	populate(database, 10_000, &idx)

	batch := make([]string, 10)
	for i := range batch {
		batch[i] = fmt.Sprintf("user-%d", i*500) // half of them exist
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.UsersWithBindings(batch)
		}
	})
}

// Benchmark for Save and Load operations
// For these operations, parallelization is not meaningful as they typically
// touch the entire database
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)

	var idx atomic.Uint64
	populate(database, 10_000, &idx)

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			loadDB.Load(bytes.NewReader(data))
			loadDB.Close()
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet|db.FeatureCompareAndSwap|db.FeatureDelete|db.FeatureUserIndex)

	var idx atomic.Uint64
	numKeys := 10_000
	keys := populate(database, numKeys, &idx)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		// Local counter for each goroutine
		localCounter := 0

		for pb.Next() {
			key := keys[int(idx.Load())%numKeys]

			// Select operation (0: get, 1: insert, 2: swap, 3: delete, 4: user lookup)
			switch localCounter % 5 {
			case 0:
				database.Get(key)
			case 1:
				database.Insert(pending(key, "user-mixed", "CODE"), idx.Add(1))
			case 2:
				if rec, found := database.Get(key); found {
					database.CompareAndSwap(rec, rec.Version, idx.Add(1))
				}
			case 3:
				database.Delete(key, idx.Add(1))
			case 4:
				database.UsersWithBindings([]string{"user-mixed", "user-1"})
			}

			localCounter++
		}
	})
}
