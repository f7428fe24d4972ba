package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"
)

// HeaderSize is CRC32(4) + Kind(1) + PayloadSize(4) + Timestamp(8).
const HeaderSize = 17

// Kind tags what a frame's payload holds.
type Kind uint8

const (
	KindMeta     Kind = 1 // checkpoint metadata
	KindSnapshot Kind = 2 // serialized codec snapshot
	KindState    Kind = 3 // one encoded record
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindSnapshot:
		return "snapshot"
	case KindState:
		return "state"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is a checksummed, timestamped payload as stored under one key
type Frame struct {
	CRC32       uint32 // CRC32 checksum for integrity
	Kind        Kind   // Payload kind
	PayloadSize uint32 // Size of the payload in bytes
	Timestamp   uint64 // Unix timestamp in nanoseconds
	Payload     []byte // Payload data
}

// Codec handles serialization and deserialization of frames
type Codec struct {
	now func() time.Time
}

// NewCodec creates a new frame codec instance
func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

// WithClock returns a codec that stamps frames using now
func WithClock(now func() time.Time) *Codec {
	return &Codec{now: now}
}

// Encode serializes a payload into a binary frame
// Format: [CRC32(4)][Kind(1)][PayloadSize(4)][Timestamp(8)][Payload]
func (c *Codec) Encode(kind Kind, payload []byte) ([]byte, error) {
	if len(payload) > int(^uint32(0)) {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	f := &Frame{
		Kind:        kind,
		PayloadSize: uint32(len(payload)),
		Timestamp:   uint64(c.now().UnixNano()),
		Payload:     payload,
	}
	f.CRC32 = f.calculateCRC32()

	buf := make([]byte, f.Size())
	binary.LittleEndian.PutUint32(buf[0:], f.CRC32)
	buf[4] = byte(f.Kind)
	binary.LittleEndian.PutUint32(buf[5:], f.PayloadSize)
	binary.LittleEndian.PutUint64(buf[9:], f.Timestamp)
	copy(buf[HeaderSize:], f.Payload)

	return buf, nil
}

// Decode deserializes and validates a binary frame. The payload aliases data.
func (c *Codec) Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrCorruptFrame, len(data))
	}

	f := &Frame{}
	f.CRC32 = binary.LittleEndian.Uint32(data[0:4])
	f.Kind = Kind(data[4])
	f.PayloadSize = binary.LittleEndian.Uint32(data[5:9])
	f.Timestamp = binary.LittleEndian.Uint64(data[9:17])

	if uint64(len(data)) != HeaderSize+uint64(f.PayloadSize) {
		return nil, fmt.Errorf("%w: payload size %d does not match %d bytes", ErrCorruptFrame, f.PayloadSize, len(data)-HeaderSize)
	}
	f.Payload = data[HeaderSize:]

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeKind decodes a frame and checks that it holds the expected kind.
func (c *Codec) DecodeKind(data []byte, want Kind) ([]byte, error) {
	f, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	if f.Kind != want {
		return nil, fmt.Errorf("%w: got %s frame, want %s", ErrUnexpectedKind, f.Kind, want)
	}
	return f.Payload, nil
}

// Validate checks the integrity of a frame using CRC32
func (f *Frame) Validate() error {
	if sum := f.calculateCRC32(); f.CRC32 != sum {
		return fmt.Errorf("%w: CRC32 mismatch: %d != %d", ErrCorruptFrame, f.CRC32, sum)
	}
	return nil
}

// Size returns the total size of the frame when encoded
func (f *Frame) Size() int {
	return HeaderSize + len(f.Payload)
}

// Time returns the frame timestamp
func (f *Frame) Time() time.Time {
	return time.Unix(0, int64(f.Timestamp)).UTC()
}

// calculateCRC32 computes the checksum over everything but the CRC field
func (f *Frame) calculateCRC32() uint32 {
	var header [HeaderSize - 4]byte
	header[0] = byte(f.Kind)
	binary.LittleEndian.PutUint32(header[1:], f.PayloadSize)
	binary.LittleEndian.PutUint64(header[5:], f.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(header[:])
	crc.Write(f.Payload)
	return crc.Sum32()
}
