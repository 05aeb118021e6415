package internal

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dBind/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTInsert           CommandType = iota // Insert a record if none exists for its channel id.
	CommandTPut                                 // Insert or replace a record.
	CommandTCompareAndSwap                      // Replace a record if its version matches.
	CommandTCompareAndDelete                    // Delete a record if its version matches.
	CommandTDelete                              // Delete a record.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTInsert:
		return "Insert"
	case CommandTPut:
		return "Put"
	case CommandTCompareAndSwap:
		return "CompareAndSwap"
	case CommandTCompareAndDelete:
		return "CompareAndDelete"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTInsert:
		return db.FeatureInsert, nil
	case CommandTPut:
		return db.FeaturePut, nil
	case CommandTCompareAndSwap:
		return db.FeatureCompareAndSwap, nil
	case CommandTCompareAndDelete:
		return db.FeatureCompareAndDelete, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// commandHeaderSize is Type + ExpectedVersion
const commandHeaderSize = 1 + 8

// Command represents a command to be executed by the state machine (a single entry in the raft log).
// Delete-type commands only use Record.ChannelID.
type Command struct {
	Type            CommandType
	ExpectedVersion uint64
	Record          db.Record
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return commandHeaderSize + command.Record.SizeBytes()
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 8 bytes for the expected version (big endian),
// N bytes for the encoded record (see db.Record.MarshalBinary)
func (command *Command) Serialize() []byte {
	result := make([]byte, commandHeaderSize, command.SizeBytes())

	// Set operation type
	result[0] = byte(command.Type)

	// Set expected version
	binary.BigEndian.PutUint64(result[1:9], command.ExpectedVersion)

	return command.Record.AppendBinary(result)
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < commandHeaderSize {
		return fmt.Errorf("data too short for command")
	}

	// Extract operation type
	command.Type = CommandType(data[0])

	// Extract expected version
	command.ExpectedVersion = binary.BigEndian.Uint64(data[1:9])

	// Extract record
	if err := command.Record.UnmarshalBinary(data[commandHeaderSize:]); err != nil {
		return fmt.Errorf("invalid record in command: %w", err)
	}

	return nil
}

// --------------------------------------------------------------------------
// Command Result (sm.Result.Data of a successful command)
// --------------------------------------------------------------------------

// CommandResult is what the state machine reports back for a successful command.
// Applied is true if the command changed the database (inserted, swapped, deleted).
// Found is true if a record is stored under the key after the command, Record holds it.
type CommandResult struct {
	Applied bool
	Found   bool
	Record  db.Record
}

const (
	resultFlagApplied = 1 << iota
	resultFlagFound
)

// Serialize encodes the result as 1 flag byte followed by the record if one was found
func (r *CommandResult) Serialize() []byte {
	var flags byte
	if r.Applied {
		flags |= resultFlagApplied
	}
	if !r.Found {
		return []byte{flags}
	}
	flags |= resultFlagFound
	buf := make([]byte, 1, 1+r.Record.SizeBytes())
	buf[0] = flags
	return r.Record.AppendBinary(buf)
}

// Deserialize decodes a result produced by Serialize
func (r *CommandResult) Deserialize(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("data too short for command result")
	}
	r.Applied = data[0]&resultFlagApplied != 0
	r.Found = data[0]&resultFlagFound != 0
	r.Record = db.Record{}
	if !r.Found {
		if len(data) != 1 {
			return fmt.Errorf("unexpected %d trailing bytes in command result", len(data)-1)
		}
		return nil
	}
	if err := r.Record.UnmarshalBinary(data[1:]); err != nil {
		return fmt.Errorf("invalid record in command result: %w", err)
	}
	return nil
}
