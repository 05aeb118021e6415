package db

import (
	"encoding/binary"
	"fmt"
)

// --------------------------------------------------------------------------
// Binding Status
// --------------------------------------------------------------------------

// Status is the verification state of a binding record.
type Status uint8

const (
	StatusPending  Status = iota + 1 // created, ownership not yet confirmed
	StatusVerified                   // ownership confirmed with the one-time code
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusVerified
}

// --------------------------------------------------------------------------
// Record
// --------------------------------------------------------------------------

// Record binds a user id to a push channel id. There is at most one record per channel id.
type Record struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Code      string `json:"code,omitempty"` // one-time verification code, empty once verified
	Status    Status `json:"status"`
	CreatedAt int64  `json:"created_at"` // unix millis of the first creation, kept across renames
	Version   uint64 `json:"version"`    // write index of the last write, assigned by the database
}

// IsVerified is a shorthand for Status == StatusVerified
func (r Record) IsVerified() bool {
	return r.Status == StatusVerified
}

// fixed part: status (1) + version (8) + createdAt (8) + 3 string lengths (3*4)
const recordHeaderSize = 1 + 8 + 8 + 3*4

// SizeBytes returns the exact number of bytes needed to encode this record
func (r Record) SizeBytes() int {
	return recordHeaderSize + len(r.ChannelID) + len(r.UserID) + len(r.Code)
}

// MarshalBinary encodes the record with the format:
// 1 byte status,
// 8 bytes version (big endian),
// 8 bytes createdAt (big endian),
// then channel id, user id and code, each as 4 bytes length + data.
func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, r.SizeBytes())), nil
}

// AppendBinary appends the encoded record to buf and returns the extended buffer.
func (r Record) AppendBinary(buf []byte) []byte {
	buf = append(buf, byte(r.Status))
	buf = binary.BigEndian.AppendUint64(buf, r.Version)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.CreatedAt))
	for _, s := range [...]string{r.ChannelID, r.UserID, r.Code} {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

// UnmarshalBinary decodes a record previously encoded with MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	rec, n, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("trailing data after record: %d bytes", len(data)-n)
	}
	*r = rec
	return nil
}

// DecodeRecord decodes one record from the start of data.
// It returns the record and the number of bytes consumed.
func DecodeRecord(data []byte) (Record, int, error) {
	if len(data) < recordHeaderSize {
		return Record{}, 0, fmt.Errorf("data too short for record header")
	}

	var rec Record
	rec.Status = Status(data[0])
	// zero is kept for key-only records (delete commands)
	if rec.Status != 0 && !rec.Status.Valid() {
		return Record{}, 0, fmt.Errorf("invalid record status %d", data[0])
	}
	rec.Version = binary.BigEndian.Uint64(data[1:9])
	rec.CreatedAt = int64(binary.BigEndian.Uint64(data[9:17]))

	pos := 17
	var fields [3]string
	for i := range fields {
		if len(data) < pos+4 {
			return Record{}, 0, fmt.Errorf("data too short for field length at %d", pos)
		}
		l := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if len(data) < pos+l {
			return Record{}, 0, fmt.Errorf("data too short for field of length %d", l)
		}
		fields[i] = string(data[pos : pos+l])
		pos += l
	}
	rec.ChannelID, rec.UserID, rec.Code = fields[0], fields[1], fields[2]

	return rec, pos, nil
}
