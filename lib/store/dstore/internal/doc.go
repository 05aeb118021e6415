// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the wire format used to transmit operations
// between the store client and the distributed state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines write operations (Insert, Put, CompareAndSwap,
//     CompareAndDelete, Delete). Commands are serialized and proposed to the RAFT cluster,
//     executed on the state machine, and produce a CommandResult that is returned to the
//     client in the Data field of the raft result.
//
//   - Query System: Defines read operations (Get, ListUsers, GetDBInfo). Queries are
//     executed locally on the state machine and therefore do not require serialization.
//
// Command Format:
//
//	- 1 byte: Command type
//	- 8 bytes: expected version (uint64, big endian), only used by the compare commands
//	- N bytes: the record, encoded with db.Record.MarshalBinary. Delete-type commands
//	  carry a record with only the channel id set.
//
// Result Format:
//
//	- 1 byte: flags (bit 0 = applied, bit 1 = record found)
//	- N bytes: the record stored after the command, only present if found
//
// The raft result Value carries the store.RetCode of the command.
package internal
