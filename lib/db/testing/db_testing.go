package testing

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dBind/lib/db"
)

// DBFactory is a function that creates a new instance of a RecordDB implementation
type DBFactory func() db.RecordDB

// RunRecordDBTests runs a comprehensive test suite for a RecordDB implementation.
func RunRecordDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("Put", func(t *testing.T) {
			testPut(t, factory())
		})

		t.Run("CompareAndSwap", func(t *testing.T) {
			testCompareAndSwap(t, factory())
		})

		t.Run("CompareAndDelete", func(t *testing.T) {
			testCompareAndDelete(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("UserIndex", func(t *testing.T) {
			testUserIndex(t, factory())
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})

		t.Run("InsertRace", func(t *testing.T) {
			testInsertRace(t, factory())
		})

		t.Run("CompareAndSwapRace", func(t *testing.T) {
			testCompareAndSwapRace(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadRejectsGarbage", func(t *testing.T) {
			testLoadRejectsGarbage(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.RecordDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func pending(channelID, userID, code string) db.Record {
	return db.Record{
		ChannelID: channelID,
		UserID:    userID,
		Code:      code,
		Status:    db.StatusPending,
		CreatedAt: 1700000000,
	}
}

func verified(channelID, userID string) db.Record {
	return db.Record{
		ChannelID: channelID,
		UserID:    userID,
		Status:    db.StatusVerified,
		CreatedAt: 1700000000,
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	rec := pending("gcm-1", "alice", "CODE1")

	current, inserted := database.Insert(rec, 1)
	if !inserted {
		t.Fatalf("Expected first Insert to succeed")
	}
	if current.Version != 1 {
		t.Errorf("Expected version 1, got %d", current.Version)
	}

	got, found := database.Get("gcm-1")
	if !found {
		t.Fatalf("Expected record to exist after Insert")
	}
	if got.UserID != "alice" || got.Code != "CODE1" || got.Status != db.StatusPending {
		t.Errorf("Unexpected record after Insert: %+v", got)
	}

	// second insert must not overwrite
	current, inserted = database.Insert(pending("gcm-1", "bob", "CODE2"), 2)
	if inserted {
		t.Errorf("Expected second Insert to fail")
	}
	if current.UserID != "alice" || current.Version != 1 {
		t.Errorf("Expected the existing record to be returned, got %+v", current)
	}

	if _, found = database.Get("nonexistent"); found {
		t.Errorf("Expected nonexistent channel to return found=false")
	}

	// a failed insert must not leave a zero record behind
	if got, _ = database.Get("gcm-1"); got.UserID != "alice" {
		t.Errorf("Record changed after failed Insert: %+v", got)
	}
}

func testPut(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	database.Put(pending("gcm-1", "alice", "CODE1"), 1)
	current := database.Put(verified("gcm-1", "alice"), 2)

	if current.Status != db.StatusVerified || current.Version != 2 {
		t.Errorf("Unexpected record after Put: %+v", current)
	}

	got, found := database.Get("gcm-1")
	if !found || got.Code != "" || !got.IsVerified() {
		t.Errorf("Expected verified record without code, got %+v (found=%v)", got, found)
	}
}

func testCompareAndSwap(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCompareAndSwap|db.FeatureGet)

	// swap on a missing record
	_, found, swapped := database.CompareAndSwap(verified("gcm-1", "alice"), 0, 1)
	if found || swapped {
		t.Errorf("Expected swap on missing record to fail (found=%v, swapped=%v)", found, swapped)
	}
	if _, exists := database.Get("gcm-1"); exists {
		t.Errorf("Swap on missing record must not create it")
	}

	database.Insert(pending("gcm-1", "alice", "CODE1"), 2)

	// wrong version
	current, found, swapped := database.CompareAndSwap(verified("gcm-1", "alice"), 1, 3)
	if !found || swapped {
		t.Errorf("Expected swap with stale version to fail (found=%v, swapped=%v)", found, swapped)
	}
	if current.Status != db.StatusPending || current.Version != 2 {
		t.Errorf("Expected unchanged record, got %+v", current)
	}

	// right version
	current, found, swapped = database.CompareAndSwap(verified("gcm-1", "alice"), 2, 4)
	if !found || !swapped {
		t.Fatalf("Expected swap with current version to succeed (found=%v, swapped=%v)", found, swapped)
	}
	if !current.IsVerified() || current.Version != 4 {
		t.Errorf("Unexpected record after swap: %+v", current)
	}

	// the old version is spent
	if _, _, swapped = database.CompareAndSwap(pending("gcm-1", "alice", "X"), 2, 5); swapped {
		t.Errorf("Expected swap with spent version to fail")
	}
}

func testCompareAndDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCompareAndDelete|db.FeatureGet)

	if database.CompareAndDelete("gcm-1", 0, 1) {
		t.Errorf("Expected delete of missing record to fail")
	}

	database.Insert(pending("gcm-1", "alice", "CODE1"), 2)

	if database.CompareAndDelete("gcm-1", 1, 3) {
		t.Errorf("Expected delete with stale version to fail")
	}
	if _, found := database.Get("gcm-1"); !found {
		t.Errorf("Record must survive a failed CompareAndDelete")
	}

	if !database.CompareAndDelete("gcm-1", 2, 4) {
		t.Errorf("Expected delete with current version to succeed")
	}
	if _, found := database.Get("gcm-1"); found {
		t.Errorf("Record must be gone after CompareAndDelete")
	}

	// a recreated record gets a fresh version, the old one must not match
	database.Insert(pending("gcm-1", "alice", "CODE2"), 5)
	if database.CompareAndDelete("gcm-1", 2, 6) {
		t.Errorf("Expected delete with version of a previous incarnation to fail")
	}
}

func testDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureDelete|db.FeatureGet)

	database.Put(verified("gcm-1", "alice"), 1)

	if !database.Delete("gcm-1", 2) {
		t.Errorf("Expected Delete of existing record to return true")
	}
	if _, found := database.Get("gcm-1"); found {
		t.Errorf("Expected record to be gone after Delete")
	}
	if database.Delete("gcm-1", 3) {
		t.Errorf("Expected second Delete to return false")
	}
	if database.Delete("nonexistent", 4) {
		t.Errorf("Expected Delete of nonexistent record to return false")
	}
}

func testUserIndex(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureUserIndex|db.FeatureInsert|db.FeaturePut|db.FeatureDelete)

	database.Insert(pending("gcm-1", "alice", "C1"), 1)
	database.Put(verified("gcm-2", "alice"), 2)
	database.Put(verified("gcm-3", "bob"), 3)

	users := database.UsersWithBindings([]string{"carol", "bob", "alice", "bob", "alice"})
	if len(users) != 2 || users[0] != "bob" || users[1] != "alice" {
		t.Errorf("Expected [bob alice], got %v", users)
	}

	// alice keeps one record
	database.Delete("gcm-1", 4)
	if users = database.UsersWithBindings([]string{"alice"}); len(users) != 1 {
		t.Errorf("Expected alice to still have a binding, got %v", users)
	}

	// ownership moves from bob to carol
	database.Put(verified("gcm-3", "carol"), 5)
	users = database.UsersWithBindings([]string{"alice", "bob", "carol"})
	if len(users) != 2 || users[0] != "alice" || users[1] != "carol" {
		t.Errorf("Expected [alice carol], got %v", users)
	}

	database.Delete("gcm-2", 6)
	database.Delete("gcm-3", 7)
	if users = database.UsersWithBindings([]string{"alice", "bob", "carol"}); len(users) != 0 {
		t.Errorf("Expected no users, got %v", users)
	}

	if users = database.UsersWithBindings(nil); len(users) != 0 {
		t.Errorf("Expected empty result for empty input, got %v", users)
	}
}

func testWriteIdx(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	database.Put(verified("gcm-1", "alice"), 10)
	if database.WriteIdx() != 10 {
		t.Errorf("Expected write index 10, got %d", database.WriteIdx())
	}

	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must not move backwards, got %d", database.WriteIdx())
	}

	database.SetWriteIdx(20)
	if database.WriteIdx() != 20 {
		t.Errorf("Expected write index 20, got %d", database.WriteIdx())
	}
}

func testInsertRace(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureUserIndex)

	numWorkers := 16
	numChannels := 200

	var (
		wg       sync.WaitGroup
		idx      atomic.Uint64
		winners  = make([]atomic.Int32, numChannels)
		startSig = make(chan struct{})
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			<-startSig
			for c := 0; c < numChannels; c++ {
				rec := pending(fmt.Sprintf("race-%d", c), fmt.Sprintf("user-%d", worker), "CODE")
				if _, inserted := database.Insert(rec, idx.Add(1)); inserted {
					winners[c].Add(1)
				}
			}
		}(w)
	}

	close(startSig)
	wg.Wait()

	for c := range winners {
		if n := winners[c].Load(); n != 1 {
			t.Errorf("Channel race-%d: expected exactly one winner, got %d", c, n)
		}
	}

	// every stored owner must be visible in the user index
	for c := 0; c < numChannels; c++ {
		rec, found := database.Get(fmt.Sprintf("race-%d", c))
		if !found {
			t.Errorf("Channel race-%d missing", c)
			continue
		}
		if users := database.UsersWithBindings([]string{rec.UserID}); len(users) != 1 {
			t.Errorf("Owner %s of race-%d missing from user index", rec.UserID, c)
		}
	}
}

func testCompareAndSwapRace(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCompareAndSwap)

	var idx atomic.Uint64
	base, _ := database.Insert(pending("gcm-cas", "alice", "C"), idx.Add(1))

	numWorkers := 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			if _, _, swapped := database.CompareAndSwap(verified("gcm-cas", "alice"), base.Version, idx.Add(1)); swapped {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one successful swap, got %d", winners.Load())
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numRecords := 1000
	for i := 0; i < numRecords; i++ {
		var rec db.Record
		if i%3 == 0 {
			rec = pending(fmt.Sprintf("save-load-%d", i), fmt.Sprintf("user-%d", i%50), fmt.Sprintf("CODE-%d", i))
		} else {
			rec = verified(fmt.Sprintf("save-load-%d", i), fmt.Sprintf("user-%d", i%50))
		}
		database.Put(rec, uint64(i+1))
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// records already present in the target are replaced
	database2.Put(verified("stale", "nobody"), 1)

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if _, found := database2.Get("stale"); found {
		t.Errorf("Load must replace existing records")
	}
	if users := database2.UsersWithBindings([]string{"nobody"}); len(users) != 0 {
		t.Errorf("Load must replace the user index, got %v", users)
	}

	for i := 0; i < numRecords; i++ {
		key := fmt.Sprintf("save-load-%d", i)
		expected, _ := database.Get(key)

		actual, found := database2.Get(key)
		if !found {
			t.Errorf("Record %s not found after Load", key)
			continue
		}
		if actual != expected {
			t.Errorf("Record mismatch for %s: expected %+v, got %+v", key, expected, actual)
		}
	}

	if database2.WriteIdx() != uint64(numRecords) {
		t.Errorf("Expected write index %d after Load, got %d", numRecords, database2.WriteIdx())
	}

	users := database2.UsersWithBindings([]string{"user-0", "user-49", "user-50"})
	if len(users) != 2 {
		t.Errorf("Expected user index to be rebuilt, got %v", users)
	}
}

func testLoadRejectsGarbage(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureLoad)

	if err := database.Load(bytes.NewReader([]byte("definitely not a snapshot"))); err == nil {
		t.Errorf("Expected Load of garbage to fail")
	}
	if err := database.Load(bytes.NewReader(nil)); err == nil {
		t.Errorf("Expected Load of empty input to fail")
	}
}

func testInfo(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	database.Put(pending("gcm-1", "alice", "C1"), 1)
	database.Put(verified("gcm-2", "alice"), 2)
	database.Put(verified("gcm-3", "bob"), 3)

	info := database.GetInfo()
	if info.Records != 3 || info.Pending != 1 || info.Verified != 2 || info.Users != 2 {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected positive size estimate, got %d", info.SizeBytes)
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed but not supported", f)
		}
	}
}

func testRealisticUsage(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureCompareAndSwap|db.FeatureDelete|db.FeatureUserIndex)

	numWorkers := 8
	opsPerWorker := 2_000
	numChannels := 64

	var (
		wg  sync.WaitGroup
		idx atomic.Uint64
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				channel := fmt.Sprintf("channel-%d", (worker*31+i)%numChannels)
				user := fmt.Sprintf("user-%d", i%7)

				switch i % 4 {
				case 0, 1: // register
					database.Insert(pending(channel, user, "CODE"), idx.Add(1))
				case 2: // verify
					if rec, found := database.Get(channel); found && !rec.IsVerified() {
						next := rec
						next.Status = db.StatusVerified
						next.Code = ""
						database.CompareAndSwap(next, rec.Version, idx.Add(1))
					}
				case 3: // delete
					database.Delete(channel, idx.Add(1))
				}
			}
		}(w)
	}

	wg.Wait()

	// the user index must match the stored records exactly
	owners := make(map[string]int)
	for _, rec := range database.Snapshot() {
		owners[rec.UserID]++
	}

	for u := 0; u < 7; u++ {
		user := fmt.Sprintf("user-%d", u)
		indexed := len(database.UsersWithBindings([]string{user})) == 1
		if indexed != (owners[user] > 0) {
			t.Errorf("User index mismatch for %s: indexed=%v, records=%d", user, indexed, owners[user])
		}
	}

	if info := database.GetInfo(); info.Users != len(owners) {
		t.Errorf("Expected %d users in info, got %d", len(owners), info.Users)
	}
}
