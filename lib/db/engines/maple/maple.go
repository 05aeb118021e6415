package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dBind/lib/db"
	"github.com/ValentinKolb/dBind/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dBind/lib/db/util"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "MAPLEDB\x00" // File format identifier
	mapleVersion  = 4             // Database version (4 = binding records)
	maxRecordSize = 1 << 20       // Upper bound for a single encoded record when loading
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a record database with sharded data and a user index
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	users     *internal.UserIndex
	currIndex atomic.Uint64 // Current logical timestamp
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.RecordDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	newDB := &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
	}
	newDB.reset()

	return newDB
}

// reset replaces all shards and the user index with empty ones
func (maple *mapleImpl) reset() {
	shards := make([]*internal.Shard, maple.numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	maple.shards = shards
	maple.users = internal.NewUserIndex()
	maple.currIndex.Store(0)
}

// shardFor returns the shard responsible for a channel id
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shardFor(channelID string) *internal.Shard {
	return maple.shards[util.ShardIndex(util.HashString(channelID, maple.seed), len(maple.shards))]
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores rec only if no record exists for rec.ChannelID.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Insert(rec db.Record, writeIndex uint64) (db.Record, bool) {
	inserted := false
	current, _ := maple.compute(rec.ChannelID, writeIndex, func(old db.Record, loaded bool) (db.Record, internal.WriteOp) {
		if loaded {
			return old, internal.WriteOpKeep
		}
		inserted = true
		return rec, internal.WriteOpStore
	})
	return current, inserted
}

// Put stores rec, replacing any existing record for rec.ChannelID.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Put(rec db.Record, writeIndex uint64) db.Record {
	current, _ := maple.compute(rec.ChannelID, writeIndex, func(_ db.Record, _ bool) (db.Record, internal.WriteOp) {
		return rec, internal.WriteOpStore
	})
	return current
}

// CompareAndSwap replaces the record for rec.ChannelID only if its version equals expectedVersion.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) CompareAndSwap(rec db.Record, expectedVersion, writeIndex uint64) (db.Record, bool, bool) {
	swapped := false
	current, found := maple.compute(rec.ChannelID, writeIndex, func(old db.Record, loaded bool) (db.Record, internal.WriteOp) {
		if !loaded || old.Version != expectedVersion {
			return old, internal.WriteOpKeep
		}
		swapped = true
		return rec, internal.WriteOpStore
	})
	return current, found, swapped
}

// CompareAndDelete removes the record for channelID only if its version equals expectedVersion.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) CompareAndDelete(channelID string, expectedVersion, writeIndex uint64) bool {
	deleted := false
	maple.compute(channelID, writeIndex, func(old db.Record, loaded bool) (db.Record, internal.WriteOp) {
		if !loaded || old.Version != expectedVersion {
			return old, internal.WriteOpKeep
		}
		deleted = true
		return old, internal.WriteOpDelete
	})
	return deleted
}

// Delete removes the record for channelID. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(channelID string, writeIndex uint64) bool {
	deleted := false
	maple.compute(channelID, writeIndex, func(old db.Record, loaded bool) (db.Record, internal.WriteOp) {
		if !loaded {
			return old, internal.WriteOpKeep
		}
		deleted = true
		return old, internal.WriteOpDelete
	})
	return deleted
}

// compute is a helper method for shared implementation between all write operations.
// The decision fn runs inside the per-key critical section of the shard map and sees the
// stored record (and whether one exists). It returns the record to store and what to do with it.
// The user index is updated in the same critical section, and the stored record is stamped
// with the channel id and writeIndex as its Version.
//
// compute returns the record stored under the key after the operation and whether one exists.
//
// Thread-safety: This function uses linearizability control to ensure thread-safety.
func (maple *mapleImpl) compute(channelID string, writeIndex uint64, fn func(old db.Record, loaded bool) (db.Record, internal.WriteOp)) (db.Record, bool) {

	// update the current index
	maple.SetWriteIdx(writeIndex)

	var (
		current db.Record
		exists  bool
	)

	maple.shardFor(channelID).Records.Compute(channelID, func(old db.Record, loaded bool) (db.Record, bool) {
		next, op := fn(old, loaded)

		switch op {

		// CASE WRITE
		case internal.WriteOpStore:
			next.ChannelID = channelID
			next.Version = writeIndex

			// keep the user index in step with the record owner
			if !loaded {
				maple.users.Add(next.UserID)
			} else if old.UserID != next.UserID {
				maple.users.Remove(old.UserID)
				maple.users.Add(next.UserID)
			}

			current, exists = next, true
			return next, false

		// CASE DELETE
		case internal.WriteOpDelete:
			if loaded {
				maple.users.Remove(old.UserID)
			}
			return old, true

		// CASE KEEP
		default:
			current, exists = old, loaded
			return old, !loaded // set delete to true if absent because else the zero value will be created
		}
	})

	return current, exists
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the record for a channel id.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(channelID string) (db.Record, bool) {
	return maple.shardFor(channelID).Records.Load(channelID)
}

// UsersWithBindings returns the subset of userIDs owning at least one record.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) UsersWithBindings(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	result := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		if maple.users.Count(userID) > 0 {
			result = append(result, userID)
		}
	}
	return result
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Snapshot returns a copy of all records.
//
// Thread-safety: Concurrent writes are allowed but the result is then a fuzzy view.
// Callers that need a consistent cut (e.g. the raft state machine) must call this
// while no writes are applied.
func (maple *mapleImpl) Snapshot() []db.Record {
	records := make([]db.Record, 0, maple.size())
	for _, shard := range maple.shards {
		shard.Records.Range(func(_ string, rec db.Record) bool {
			records = append(records, rec)
			return true
		})
	}
	return records
}

// Save persists the database to the writer
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load. It takes a fuzzy snapshot without blocking modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	return writeSnapshot(w, maple.seed, maple.Snapshot())
}

// writeSnapshot writes records in the maple persistence format:
// magic number, version, seed, record count, then each record as 4 bytes length + encoded record.
func writeSnapshot(w io.Writer, seed uint64, records []db.Record) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write seed
	if err := binary.Write(bw, binary.LittleEndian, seed); err != nil {
		return err
	}

	// Write total record count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(records))); err != nil {
		return err
	}

	// Write records
	buf := make([]byte, 0, 256)
	for _, rec := range records {
		buf = rec.AppendBinary(buf[:0])

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(buf))); err != nil {
			return err
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read seed
	var seed uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}

	// Recreate empty shards with the loaded seed
	maple.seed = seed
	maple.reset()

	// Read record count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Track the highest index seen during load
	var maxIndex uint64 = 0

	buf := make([]byte, 256)
	for i := uint64(0); i < count; i++ {
		var recLen uint32
		if err := binary.Read(br, binary.LittleEndian, &recLen); err != nil {
			return err
		}
		if recLen > maxRecordSize {
			return fmt.Errorf("record %d too large: %d bytes", i, recLen)
		}
		if int(recLen) > cap(buf) {
			buf = make([]byte, recLen)
		}
		buf = buf[:recLen]
		if _, err := io.ReadFull(br, buf); err != nil {
			return err
		}

		var rec db.Record
		if err := rec.UnmarshalBinary(buf); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}

		if rec.Version > maxIndex {
			maxIndex = rec.Version
		}

		// this method is single threaded, so the record and index can be written directly
		if _, loaded := maple.shardFor(rec.ChannelID).Records.LoadOrStore(rec.ChannelID, rec); loaded {
			return fmt.Errorf("duplicate record for channel %q", rec.ChannelID)
		}
		maple.users.Add(rec.UserID)
	}

	// Update current index to the highest seen during load
	maple.SetWriteIdx(maxIndex)

	return nil
}

// --------------------------------------------------------------------------
// RecordDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// size returns the number of records over all shards
func (maple *mapleImpl) size() int {
	n := 0
	for _, shard := range maple.shards {
		n += shard.Records.Size()
	}
	return n
}

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// get current index only once to reduce contention
	currentWriteIndex := maple.currIndex.Load()

	// histograms are safe for concurrent updates
	recordSizes := gometrics.NewHistogram(gometrics.NewUniformSample(1028))
	shardSizes := gometrics.NewHistogram(gometrics.NewUniformSample(len(maple.shards)))

	var (
		wg       sync.WaitGroup
		pending  atomic.Int64
		verified atomic.Int64
	)
	wg.Add(len(maple.shards))

	// concurrently collect stats from all shards
	for _, shard := range maple.shards {
		go func(s *internal.Shard) {
			defer wg.Done()
			var p, v int64
			s.Records.Range(func(_ string, rec db.Record) bool {
				recordSizes.Update(int64(rec.SizeBytes()))
				if rec.IsVerified() {
					v++
				} else {
					p++
				}
				return true
			})
			pending.Add(p)
			verified.Add(v)
			shardSizes.Update(int64(s.Records.Size()))
		}(shard)
	}

	// wait for all shards to finish
	wg.Wait()

	records := int(pending.Load() + verified.Load())

	// calculate size
	entryOverhead := 48 // map entry, string headers and index share per record
	medianSize := recordSizes.Percentile(0.5) + float64(entryOverhead)
	avgSize := recordSizes.Mean() + float64(entryOverhead)

	// weighted estimate (60% median, 40% average)
	sizeBytes := int(float64(records) * (medianSize*0.6 + avgSize*0.4))

	// Metadata for this specific database implementation
	meta := &struct {
		CurrentWriteIndex uint64  `json:"current_write_index"`
		ShardCount        int     `json:"shard_count"`
		ShardMin          int64   `json:"shard_min"`
		ShardMax          int64   `json:"shard_max"`
		ShardMean         float64 `json:"shard_mean"`
		ShardStdDev       float64 `json:"shard_std_dev"`
		RecordSizeMedian  float64 `json:"record_size_median"`
		RecordSizeMax     int64   `json:"record_size_max"`
		Info              string  `json:"info"`
	}{
		CurrentWriteIndex: currentWriteIndex,
		ShardCount:        len(maple.shards),
		ShardMin:          shardSizes.Min(),
		ShardMax:          shardSizes.Max(),
		ShardMean:         shardSizes.Mean(),
		ShardStdDev:       shardSizes.StdDev(),
		RecordSizeMedian:  recordSizes.Percentile(0.5),
		RecordSizeMax:     recordSizes.Max(),
		Info:              "SizeBytes is an estimate and may vary depending on the database state.",
	}

	// features
	supportedFeatures := []db.Feature{
		db.FeatureGet, db.FeatureInsert, db.FeaturePut,
		db.FeatureCompareAndSwap, db.FeatureCompareAndDelete, db.FeatureDelete,
		db.FeatureUserIndex,
		db.FeatureSave, db.FeatureLoad,
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Records:           records,
		Pending:           int(pending.Load()),
		Verified:          int(verified.Load()),
		Users:             maple.users.Len(),
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific RecordDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeatureInsert |
		db.FeaturePut |
		db.FeatureCompareAndSwap |
		db.FeatureCompareAndDelete |
		db.FeatureDelete |
		db.FeatureUserIndex |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close releases nothing, maple holds no background resources
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It uses atomic operations to ensure that the index only increases.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	// Only update if the new index is greater
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
