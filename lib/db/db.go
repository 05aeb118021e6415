package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet              Feature = 1 << iota // Support for Get operations
	FeatureInsert                               // Support for atomic create-if-absent
	FeaturePut                                  // Support for unconditional upserts
	FeatureCompareAndSwap                       // Support for version-conditional updates
	FeatureCompareAndDelete                     // Support for version-conditional deletes
	FeatureDelete                               // Support for Delete operations
	FeatureUserIndex                            // Support for lookups by user id
	FeatureSave                                 // Support for Save operations
	FeatureLoad                                 // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureInsert:
		return "Insert"
	case FeaturePut:
		return "Put"
	case FeatureCompareAndSwap:
		return "CompareAndSwap"
	case FeatureCompareAndDelete:
		return "CompareAndDelete"
	case FeatureDelete:
		return "Delete"
	case FeatureUserIndex:
		return "UserIndex"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Records           int            `json:"records"`
	Pending           int            `json:"pending"`
	Verified          int            `json:"verified"`
	Users             int            `json:"users"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// RecordDB defines an interface for binding record database implementations.
// Records are keyed by channel id. Every write is atomic with respect to that key
// and stamps the record with the given writeIndex as its new Version.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type RecordDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert stores rec only if no record exists for rec.ChannelID.
	// It returns the record stored under the key after the call and whether rec was inserted.
	// When two inserts race for the same key exactly one of them returns inserted=true.
	Insert(rec Record, writeIndex uint64) (current Record, inserted bool)

	// Put stores rec, replacing any existing record for rec.ChannelID.
	Put(rec Record, writeIndex uint64) (current Record)

	// CompareAndSwap replaces the record for rec.ChannelID only if it exists and its
	// version equals expectedVersion. It returns the record stored after the call,
	// whether a record exists and whether the swap happened.
	CompareAndSwap(rec Record, expectedVersion, writeIndex uint64) (current Record, found, swapped bool)

	// CompareAndDelete removes the record for channelID only if its version equals expectedVersion.
	CompareAndDelete(channelID string, expectedVersion, writeIndex uint64) (deleted bool)

	// Delete removes the record for channelID. It returns whether a record was removed.
	Delete(channelID string, writeIndex uint64) (deleted bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the record for a channel id.
	Get(channelID string) (rec Record, found bool)

	// UsersWithBindings returns the subset of userIDs that own at least one record (any status).
	// The result holds no duplicates and keeps the order of first occurrence in userIDs.
	UsersWithBindings(userIDs []string) []string

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Snapshot returns a copy of all records. It must not be called concurrently with writes
	// if a point-in-time view is required.
	Snapshot() []Record

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database .
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
