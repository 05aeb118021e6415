package store

import (
	"fmt"
	"github.com/ValentinKolb/dBind/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.RecordDB

// IStore is the interface for interacting with a binding record store.
// Records are keyed by channel id and every operation is atomic with respect to that key.
// The Version of a record is assigned by the store on every write; callers pass it back
// as expectedVersion to make a write conditional on nobody having written in between.
// All operations return a *Error (nil on success) alongside their result.
type IStore interface {
	// Get returns the record for a channel id. The boolean return value indicates whether a record was found.
	Get(channelID string) (rec db.Record, found bool, err error)
	// CreateIfAbsent stores rec only if no record exists for rec.ChannelID.
	// It returns the record stored under the key after the call (the winner's record if
	// another writer got there first) and whether rec was created.
	CreateIfAbsent(rec db.Record) (current db.Record, created bool, err error)
	// Put stores rec unconditionally and returns the stored record.
	Put(rec db.Record) (current db.Record, err error)
	// CompareAndSwap replaces the record for rec.ChannelID only if it still carries expectedVersion.
	// It returns the record stored after the call and whether the swap happened.
	// A missing record never swaps.
	CompareAndSwap(rec db.Record, expectedVersion uint64) (current db.Record, swapped bool, err error)
	// CompareAndDelete removes the record for channelID only if it still carries expectedVersion.
	CompareAndDelete(channelID string, expectedVersion uint64) (deleted bool, err error)
	// Delete removes the record for channelID. Deleting a missing record is not an error.
	Delete(channelID string) (deleted bool, err error)
	// ListUsersWithBindings returns the subset of userIDs owning at least one record of any status.
	// The result holds no duplicates and keeps the order of first occurrence.
	ListUsersWithBindings(userIDs []string) (users []string, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code, so errors.Is can match on codes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCConflict                            // 4: A conditional write lost against a concurrent writer.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}
