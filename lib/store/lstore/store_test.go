package lstore

import (
	"testing"

	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple"
	"github.com/ValentinKolb/dBind/lib/store"
	storetesting "github.com/ValentinKolb/dBind/lib/store/testing"
	"github.com/stretchr/testify/assert"
)

func Test(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalStore", func() store.IStore {
		return NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
	})
}

// limitedDB hides every feature but Get
type limitedDB struct {
	db.RecordDB
}

func (l limitedDB) SupportsFeature(f db.Feature) bool {
	return f == db.FeatureGet
}

func TestUnsupportedFeature(t *testing.T) {
	s := NewLocalStore(func() db.RecordDB { return limitedDB{maple.NewMapleDB(nil)} })

	_, _, err := s.CreateIfAbsent(db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusPending})
	assert.True(t, storetesting.IsCode(err, store.RetCUnsupportedOperation))

	_, err = s.ListUsersWithBindings([]string{"alice"})
	assert.True(t, storetesting.IsCode(err, store.RetCUnsupportedOperation))

	_, _, err = s.Get("gcm-1")
	assert.NoError(t, err)
}
