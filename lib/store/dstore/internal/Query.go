package internal

import "github.com/ValentinKolb/dBind/lib/db"

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet       QueryType = iota // Retrieve a record by channel id.
	QueryTListUsers                  // Filter user ids down to those owning a record.
	QueryTGetDBInfo                  // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTListUsers:
		return "ListUsers"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or ReadStale
type Query struct {
	Type      QueryType // The type of Query to perform.
	ChannelID string    // The channel id for QueryTGet.
	UserIDs   []string  // The candidates for QueryTListUsers.
}

// QueryResult is the result of a QueryTGet operation.
// All other query results are primitive types or predefined structs ([]string, db.DatabaseInfo).
type QueryResult struct {
	Ok     bool
	Record db.Record
}
