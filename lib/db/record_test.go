package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBinary(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{
			name: "pending record",
			rec: Record{
				ChannelID: "gcm-1",
				UserID:    "alice",
				Code:      "0123456789ABCDEF0123456789ABCDEF",
				Status:    StatusPending,
				CreatedAt: 1700000000123,
				Version:   42,
			},
		},
		{
			name: "verified record without code",
			rec:  Record{ChannelID: "gcm-2", UserID: "bob", Status: StatusVerified, Version: 1},
		},
		{
			name: "key-only record",
			rec:  Record{ChannelID: "gcm-3"},
		},
		{
			name: "unicode ids",
			rec:  Record{ChannelID: "频道", UserID: "用户", Status: StatusVerified},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.rec.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, tt.rec.SizeBytes())

			var decoded Record
			require.NoError(t, decoded.UnmarshalBinary(data))
			assert.Equal(t, tt.rec, decoded)
		})
	}
}

func TestDecodeRecordConsumesOneRecord(t *testing.T) {
	first := Record{ChannelID: "a", UserID: "u1", Status: StatusPending, Code: "C"}
	second := Record{ChannelID: "b", UserID: "u2", Status: StatusVerified}

	buf := first.AppendBinary(nil)
	buf = second.AppendBinary(buf)

	rec, n, err := DecodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, first, rec)
	assert.Equal(t, first.SizeBytes(), n)

	rec, _, err = DecodeRecord(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, second, rec)

	var r Record
	assert.Error(t, r.UnmarshalBinary(buf), "trailing data must be rejected")
}

func TestDecodeRecordErrors(t *testing.T) {
	valid := Record{ChannelID: "gcm-1", UserID: "alice", Status: StatusVerified}.AppendBinary(nil)

	badStatus := append([]byte(nil), valid...)
	badStatus[0] = 9

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:10]},
		{"truncated field", valid[:len(valid)-2]},
		{"unknown status", badStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeRecord(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "verified", StatusVerified.String())
	assert.False(t, Status(0).Valid())
	assert.True(t, Record{Status: StatusVerified}.IsVerified())
}
