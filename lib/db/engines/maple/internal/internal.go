package internal

import (
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Write operations (decided inside the per-key critical section)
// --------------------------------------------------------------------------

type WriteOp int

const (
	WriteOpKeep   WriteOp = iota // leave the stored record (or absence) as it is
	WriteOpStore                 // store the returned record
	WriteOpDelete                // remove the stored record
)

func (o WriteOp) String() string {
	switch o {
	case WriteOpKeep:
		return "Keep"
	case WriteOpStore:
		return "Store"
	case WriteOpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the record table keyed by channel id
type Shard struct {
	Records *xsync.MapOf[string, db.Record]
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Records: xsync.NewMapOf[string, db.Record](),
	}
}

// --------------------------------------------------------------------------
// User Index (user id -> number of records owned)
// --------------------------------------------------------------------------

// UserIndex counts the records per user id.
// It is only modified from inside a record's Compute callback, so the count
// for a user changes in the same critical section as the record itself.
type UserIndex struct {
	counts *xsync.MapOf[string, uint32]
}

// NewUserIndex creates an empty index
func NewUserIndex() *UserIndex {
	return &UserIndex{
		counts: xsync.NewMapOf[string, uint32](),
	}
}

// Add registers one more record for userID
func (u *UserIndex) Add(userID string) {
	u.counts.Compute(userID, func(old uint32, _ bool) (uint32, bool) {
		return old + 1, false
	})
}

// Remove unregisters one record for userID. The user disappears from the index with its last record.
func (u *UserIndex) Remove(userID string) {
	u.counts.Compute(userID, func(old uint32, loaded bool) (uint32, bool) {
		if !loaded || old <= 1 {
			return 0, true
		}
		return old - 1, false
	})
}

// Count returns the number of records owned by userID
func (u *UserIndex) Count(userID string) uint32 {
	n, _ := u.counts.Load(userID)
	return n
}

// Len returns the number of users owning at least one record
func (u *UserIndex) Len() int {
	return u.counts.Size()
}
