package testing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory is a function that creates a new, empty store instance
type StoreFactory func() store.IStore

// RunStoreTests runs the conformance suite for a store.IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateIfAbsent", func(t *testing.T) {
			testCreateIfAbsent(t, factory())
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

		t.Run("ListUsersWithBindings", func(t *testing.T) {
			testListUsers(t, factory())
		})

		t.Run("ConcurrentCreate", func(t *testing.T) {
			testConcurrentCreate(t, factory())
		})

		t.Run("DBInfo", func(t *testing.T) {
			testDBInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateIfAbsent(t *testing.T, s store.IStore) {
	rec := db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "CODE", Status: db.StatusPending}

	current, created, err := s.CreateIfAbsent(rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "alice", current.UserID)
	assert.NotZero(t, current.Version, "store must assign a version")

	other := rec
	other.UserID = "bob"
	winner, created, err := s.CreateIfAbsent(other)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, current, winner, "loser must see the winner's record")

	got, found, err := s.Get("gcm-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, current, got)

	_, found, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func testPut(t *testing.T, s store.IStore) {
	first, err := s.Put(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified})
	require.NoError(t, err)

	second, err := s.Put(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified, CreatedAt: 5})
	require.NoError(t, err)

	assert.Greater(t, second.Version, first.Version, "every write gets a new version")
	assert.Equal(t, int64(5), second.CreatedAt)
}

func testCompareAndSwap(t *testing.T, s store.IStore) {
	_, swapped, err := s.CompareAndSwap(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified}, 0)
	require.NoError(t, err)
	assert.False(t, swapped, "missing record never swaps")

	base, _, err := s.CreateIfAbsent(db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "C", Status: db.StatusPending})
	require.NoError(t, err)

	next := base
	next.Status = db.StatusVerified
	next.Code = ""

	current, swapped, err := s.CompareAndSwap(next, base.Version+1000)
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Equal(t, base, current)

	current, swapped, err = s.CompareAndSwap(next, base.Version)
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.True(t, current.IsVerified())
	assert.Empty(t, current.Code)

	_, swapped, err = s.CompareAndSwap(next, base.Version)
	require.NoError(t, err)
	assert.False(t, swapped, "a spent version must not swap again")
}

func testCompareAndDelete(t *testing.T, s store.IStore) {
	base, _, err := s.CreateIfAbsent(db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "C", Status: db.StatusPending})
	require.NoError(t, err)

	deleted, err := s.CompareAndDelete("gcm-1", base.Version+1000)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.CompareAndDelete("gcm-1", base.Version)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := s.Get("gcm-1")
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err = s.CompareAndDelete("gcm-1", base.Version)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func testDelete(t *testing.T, s store.IStore) {
	_, err := s.Put(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified})
	require.NoError(t, err)

	deleted, err := s.Delete("gcm-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete("gcm-1")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting a missing record is not an error")
}

func testListUsers(t *testing.T, s store.IStore) {
	_, _, err := s.CreateIfAbsent(db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "C", Status: db.StatusPending})
	require.NoError(t, err)
	_, err = s.Put(db.Record{ChannelID: "gcm-2", UserID: "bob", Status: db.StatusVerified})
	require.NoError(t, err)

	users, err := s.ListUsersWithBindings([]string{"carol", "bob", "alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, users)

	_, err = s.Delete("gcm-2")
	require.NoError(t, err)

	users, err = s.ListUsersWithBindings([]string{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, users)
}

func testConcurrentCreate(t *testing.T, s store.IStore) {
	numWorkers := 16

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		errs    = make(chan error, numWorkers)
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			rec := db.Record{ChannelID: "contested", UserID: fmt.Sprintf("user-%d", worker), Code: "C", Status: db.StatusPending}
			_, ok, err := s.CreateIfAbsent(rec)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				created.Add(1)
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, int32(1), created.Load(), "exactly one create must win")
}

func testDBInfo(t *testing.T, s store.IStore) {
	_, err := s.Put(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified})
	require.NoError(t, err)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Records)
	assert.Equal(t, 1, info.Verified)
}

// --------------------------------------------------------------------------
// Helpers for other test packages
// --------------------------------------------------------------------------

// IsCode reports whether err is a *store.Error with the given code
func IsCode(err error, code store.RetCode) bool {
	var se *store.Error
	return errors.As(err, &se) && se.Code == code
}
