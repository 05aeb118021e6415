package internal

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/ValentinKolb/dBind/lib/db"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Insert with full record",
			command: Command{
				Type:   CommandTInsert,
				Record: db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "CODE", Status: db.StatusPending},
			},
			expected: 1 + 8 + (1 + 8 + 8 + 3*4) + 5 + 5 + 4, // Type + ExpectedVersion + record header + fields
		},
		{
			name: "Delete with channel id only",
			command: Command{
				Type:   CommandTDelete,
				Record: db.Record{ChannelID: "gcm-1"},
			},
			expected: 1 + 8 + (1 + 8 + 8 + 3*4) + 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "Insert pending record",
			command: Command{
				Type:   CommandTInsert,
				Record: db.Record{ChannelID: "gcm-1", UserID: "alice", Code: "CODE", Status: db.StatusPending, CreatedAt: 1700000000000},
			},
		},
		{
			name: "Put verified record",
			command: Command{
				Type:   CommandTPut,
				Record: db.Record{ChannelID: "gcm-2", UserID: "alice", Status: db.StatusVerified, CreatedAt: 1700000000000},
			},
		},
		{
			name: "CompareAndSwap with max version",
			command: Command{
				Type:            CommandTCompareAndSwap,
				ExpectedVersion: 18446744073709551615, // Max uint64
				Record:          db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusVerified},
			},
		},
		{
			name: "CompareAndDelete",
			command: Command{
				Type:            CommandTCompareAndDelete,
				ExpectedVersion: 17,
				Record:          db.Record{ChannelID: "gcm-1"},
			},
		},
		{
			name: "Delete with empty channel id",
			command: Command{
				Type: CommandTDelete,
			},
		},
		{
			name: "Unicode ids",
			command: Command{
				Type:   CommandTPut,
				Record: db.Record{ChannelID: "你好世界", UserID: "用户", Status: db.StatusVerified},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Serialize
			data := tt.command.Serialize()

			// Deserialize into a new command
			var newCommand Command
			err := newCommand.Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			// Compare original and deserialized command
			if newCommand != tt.command {
				t.Errorf("Command mismatch: got %+v, want %+v", newCommand, tt.command)
			}

			// Verify that SizeBytes matches the serialized data length
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d",
					tt.command.SizeBytes(), len(data))
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3, 4, 5},
			expectedErr: "data too short for command",
		},
		{
			name:        "Missing record",
			data:        make([]byte, commandHeaderSize),
			expectedErr: "invalid record in command",
		},
		{
			name: "Invalid field length",
			data: func() []byte {
				data := (&Command{Type: CommandTDelete, Record: db.Record{ChannelID: "x"}}).Serialize()
				// channel id length directly follows the record header fields
				binary.BigEndian.PutUint32(data[commandHeaderSize+17:commandHeaderSize+21], 1000)
				return data
			}(),
			expectedErr: "data too short for field of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)

			// Check if we got the expected error
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("Expected error containing %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:            CommandTCompareAndSwap,
		ExpectedVersion: 12345,
		Record:          db.Record{ChannelID: "ch", UserID: "u", Status: db.StatusVerified, Version: 0, CreatedAt: 7},
	}

	// Manually create the expected byte array
	expected := []byte{byte(CommandTCompareAndSwap)}
	expected = binary.BigEndian.AppendUint64(expected, 12345)
	expected = append(expected, byte(db.StatusVerified))
	expected = binary.BigEndian.AppendUint64(expected, 0) // version
	expected = binary.BigEndian.AppendUint64(expected, 7) // createdAt
	expected = binary.BigEndian.AppendUint32(expected, 2)
	expected = append(expected, "ch"...)
	expected = binary.BigEndian.AppendUint32(expected, 1)
	expected = append(expected, "u"...)
	expected = binary.BigEndian.AppendUint32(expected, 0) // no code

	// Serialize and compare
	serialized := cmd.Serialize()
	if !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

// TestCommandResult tests the encoding of command results
func TestCommandResult(t *testing.T) {
	tests := []struct {
		name   string
		result CommandResult
		size   int
	}{
		{
			name:   "Applied with record",
			result: CommandResult{Applied: true, Found: true, Record: db.Record{ChannelID: "gcm-1", UserID: "alice", Status: db.StatusPending, Code: "C", Version: 3}},
		},
		{
			name:   "Not applied with record",
			result: CommandResult{Found: true, Record: db.Record{ChannelID: "gcm-1", UserID: "bob", Status: db.StatusVerified, Version: 9}},
		},
		{
			name:   "Applied delete",
			result: CommandResult{Applied: true},
			size:   1,
		},
		{
			name:   "Nothing",
			result: CommandResult{},
			size:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.result.Serialize()
			if tt.size > 0 && len(data) != tt.size {
				t.Errorf("Serialized size = %d, want %d", len(data), tt.size)
			}

			var decoded CommandResult
			if err := decoded.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if decoded != tt.result {
				t.Errorf("Result mismatch: got %+v, want %+v", decoded, tt.result)
			}
		})
	}

	var r CommandResult
	if err := r.Deserialize(nil); err == nil {
		t.Errorf("Expected error for empty result")
	}
	if err := r.Deserialize([]byte{0, 1}); err == nil {
		t.Errorf("Expected error for trailing bytes")
	}
}

func TestToDBFeature(t *testing.T) {
	for ct := CommandTInsert; ct <= CommandTDelete; ct++ {
		if _, err := ct.ToDBFeature(); err != nil {
			t.Errorf("%s: unexpected error %v", ct, err)
		}
	}
	if _, err := CommandType(200).ToDBFeature(); err == nil {
		t.Errorf("Expected error for unknown command type")
	}
}
