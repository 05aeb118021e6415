package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte) | flags (2 bytes, big endian) | present fields in flag order.
// Strings are a uint32 length followed by the bytes, the id list is a uint32
// count followed by strings, Result and ErrKind are a single byte.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasUserID       uint16 = 1 << 0
	hasChannelID    uint16 = 1 << 1
	hasOldChannelID uint16 = 1 << 2
	hasNewChannelID uint16 = 1 << 3
	hasCode         uint16 = 1 << 4
	hasUserIDs      uint16 = 1 << 5
	hasResult       uint16 = 1 << 6
	hasErr          uint16 = 1 << 7
	hasErrKind      uint16 = 1 << 8
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, headerSize, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16

	// Handle string fields in flag order
	for _, field := range []struct {
		flag  uint16
		value string
	}{
		{hasUserID, msg.UserID},
		{hasChannelID, msg.ChannelID},
		{hasOldChannelID, msg.OldChannelID},
		{hasNewChannelID, msg.NewChannelID},
		{hasCode, msg.Code},
	} {
		if field.value != "" {
			flags |= field.flag
			result = appendString(result, field.value)
		}
	}

	// Handle UserIDs (an empty, non nil list is kept distinct from no list)
	if msg.UserIDs != nil {
		flags |= hasUserIDs
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.UserIDs)))
		for _, id := range msg.UserIDs {
			result = appendString(result, id)
		}
	}

	// Handle Result
	if msg.Result != 0 {
		flags |= hasResult
		result = append(result, byte(msg.Result))
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}

	// Handle ErrKind
	if msg.ErrKind != common.ErrKindNone {
		flags |= hasErrKind
		result = append(result, byte(msg.ErrKind))
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := reader{data: data, pos: headerSize}

	// Read string fields in flag order
	for _, field := range []struct {
		flag uint16
		name string
		dst  *string
	}{
		{hasUserID, "user id", &msg.UserID},
		{hasChannelID, "channel id", &msg.ChannelID},
		{hasOldChannelID, "old channel id", &msg.OldChannelID},
		{hasNewChannelID, "new channel id", &msg.NewChannelID},
		{hasCode, "code", &msg.Code},
	} {
		if flags&field.flag == 0 {
			continue
		}
		s, err := r.string(field.name)
		if err != nil {
			return err
		}
		*field.dst = s
	}

	// Read UserIDs if present
	if flags&hasUserIDs != 0 {
		count, err := r.uint32("user id count")
		if err != nil {
			return err
		}
		// every entry needs at least its length prefix
		if int(count) > (len(data)-r.pos)/4 {
			return fmt.Errorf("data too short for %d user ids", count)
		}
		msg.UserIDs = make([]string, count)
		for i := range msg.UserIDs {
			if msg.UserIDs[i], err = r.string("user id list"); err != nil {
				return err
			}
		}
	}

	// Read Result if present
	if flags&hasResult != 0 {
		v, err := r.byte("result")
		if err != nil {
			return err
		}
		msg.Result = binding.Result(v)
	}

	// Read Err if present
	if flags&hasErr != 0 {
		s, err := r.string("error")
		if err != nil {
			return err
		}
		msg.Err = s
	}

	// Read ErrKind if present
	if flags&hasErrKind != 0 {
		v, err := r.byte("error kind")
		if err != nil {
			return err
		}
		msg.ErrKind = common.ErrorKind(v)
	}

	if r.pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	for _, s := range []string{msg.UserID, msg.ChannelID, msg.OldChannelID, msg.NewChannelID, msg.Code, msg.Err} {
		if s != "" {
			size += 4 + len(s) // 4 bytes for length + string
		}
	}
	if msg.UserIDs != nil {
		size += 4
		for _, id := range msg.UserIDs {
			size += 4 + len(id)
		}
	}
	if msg.Result != 0 {
		size++
	}
	if msg.ErrKind != common.ErrKindNone {
		size++
	}

	return size
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks a serialized message and reports which field was truncated
type reader struct {
	data []byte
	pos  int
}

func (r *reader) uint32(field string) (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s length", field)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) string(field string) (string, error) {
	n, err := r.uint32(field)
	if err != nil {
		return "", err
	}
	if uint64(r.pos)+uint64(n) > uint64(len(r.data)) {
		return "", fmt.Errorf("data too short for %s data", field)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) byte(field string) (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", field)
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}
