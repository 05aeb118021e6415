// Package testing provides a conformance suite for store.IStore implementations.
//
// Example usage:
//
//	storetesting.RunStoreTests(t, "LocalStore", func() store.IStore {
//		return lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
//	})
package testing
