package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	// headerSize is shardId (8) + requestID (8) + payload length (4)
	headerSize = 20

	// maxFrameSize bounds the payload a peer may announce
	maxFrameSize = 16 << 20
)

// writeFrame writes one frame:
//
//	8 bytes  shard id, big endian
//	8 bytes  request id, big endian
//	4 bytes  payload length, big endian
//	N bytes  payload
func writeFrame(w io.Writer, shardID, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d", len(data), maxFrameSize)
	}

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	// one write for header and payload
	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads one frame. The payload is read into buf if it fits, otherwise
// a new slice is allocated, so the result may alias buf.
func readFrame(r io.Reader, buf []byte) (shardID, requestID uint64, data []byte, err error) {
	var header [headerSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(header[:8])
	requestID = binary.BigEndian.Uint64(header[8:16])
	length := binary.BigEndian.Uint32(header[16:20])

	if length > maxFrameSize {
		return shardID, requestID, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d", length, maxFrameSize)
	}
	if length == 0 {
		return shardID, requestID, []byte{}, nil
	}

	if len(buf) < int(length) {
		buf = make([]byte, length)
	}
	if _, err = io.ReadFull(r, buf[:length]); err != nil {
		return shardID, requestID, nil, err
	}
	return shardID, requestID, buf[:length], nil
}
