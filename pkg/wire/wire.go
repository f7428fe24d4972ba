// Package wire provides the byte-level cursors the record codec writes to and
// reads from.
//
// Integers use unsigned or zig-zag varints unless a fixed width is requested,
// fixed-width values are little-endian, and strings and byte slices are
// prefixed with their uvarint length.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("wire: short buffer")

// ErrMalformed is returned for encodings that can never be valid, such as an
// overlong varint or a length prefix larger than the remaining input.
var ErrMalformed = errors.New("wire: malformed input")

// Writer is the write side of a cursor.
type Writer interface {
	PutByte(b byte)
	PutBool(v bool)
	PutUvarint(v uint64)
	PutVarint(v int64)
	PutUint32(v uint32)
	PutUint64(v uint64)
	PutFloat32(v float32)
	PutFloat64(v float64)
	PutString(s string)
	PutBytes(b []byte)
}

// Reader is the read side of a cursor.
type Reader interface {
	Byte() (byte, error)
	Bool() (bool, error)
	Uvarint() (uint64, error)
	Varint() (int64, error)
	Uint32() (uint32, error)
	Uint64() (uint64, error)
	Float32() (float32, error)
	Float64() (float64, error)
	String() (string, error)
	Bytes() ([]byte, error)
}

// Output is an in-memory Writer.
type Output struct {
	buf []byte
}

// NewOutput creates an output with the given initial capacity
func NewOutput(capacity int) *Output {
	return &Output{buf: make([]byte, 0, capacity)}
}

// Bytes returns the written bytes. The slice aliases the output buffer.
func (o *Output) Bytes() []byte { return o.buf }

// Len returns the number of bytes written so far
func (o *Output) Len() int { return len(o.buf) }

// Reset discards all written bytes but keeps the buffer.
func (o *Output) Reset() { o.buf = o.buf[:0] }

func (o *Output) PutByte(b byte) { o.buf = append(o.buf, b) }

func (o *Output) PutBool(v bool) {
	if v {
		o.buf = append(o.buf, 1)
		return
	}
	o.buf = append(o.buf, 0)
}

func (o *Output) PutUvarint(v uint64) { o.buf = binary.AppendUvarint(o.buf, v) }

func (o *Output) PutVarint(v int64) { o.buf = binary.AppendVarint(o.buf, v) }

func (o *Output) PutUint32(v uint32) { o.buf = binary.LittleEndian.AppendUint32(o.buf, v) }

func (o *Output) PutUint64(v uint64) { o.buf = binary.LittleEndian.AppendUint64(o.buf, v) }

func (o *Output) PutFloat32(v float32) { o.PutUint32(math.Float32bits(v)) }

func (o *Output) PutFloat64(v float64) { o.PutUint64(math.Float64bits(v)) }

func (o *Output) PutString(s string) {
	o.PutUvarint(uint64(len(s)))
	o.buf = append(o.buf, s...)
}

func (o *Output) PutBytes(b []byte) {
	o.PutUvarint(uint64(len(b)))
	o.buf = append(o.buf, b...)
}

// Input is an in-memory Reader over a byte slice.
type Input struct {
	data []byte
	off  int
}

// NewInput creates an input positioned at the start of data
func NewInput(data []byte) *Input {
	return &Input{data: data}
}

// Remaining returns the number of unread bytes
func (in *Input) Remaining() int { return len(in.data) - in.off }

// Offset returns the current read position
func (in *Input) Offset() int { return in.off }

func (in *Input) take(n int) ([]byte, error) {
	if n < 0 || in.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, in.off, in.Remaining())
	}
	b := in.data[in.off : in.off+n]
	in.off += n
	return b, nil
}

func (in *Input) Byte() (byte, error) {
	b, err := in.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (in *Input) Bool() (bool, error) {
	b, err := in.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte 0x%02x", ErrMalformed, b)
	}
}

func (in *Input) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(in.data[in.off:])
	if n == 0 {
		return 0, fmt.Errorf("%w: uvarint at offset %d", ErrShortBuffer, in.off)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: uvarint overflow at offset %d", ErrMalformed, in.off)
	}
	in.off += n
	return v, nil
}

func (in *Input) Varint() (int64, error) {
	v, n := binary.Varint(in.data[in.off:])
	if n == 0 {
		return 0, fmt.Errorf("%w: varint at offset %d", ErrShortBuffer, in.off)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: varint overflow at offset %d", ErrMalformed, in.off)
	}
	in.off += n
	return v, nil
}

func (in *Input) Uint32() (uint32, error) {
	b, err := in.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (in *Input) Uint64() (uint64, error) {
	b, err := in.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (in *Input) Float32() (float32, error) {
	v, err := in.Uint32()
	return math.Float32frombits(v), err
}

func (in *Input) Float64() (float64, error) {
	v, err := in.Uint64()
	return math.Float64frombits(v), err
}

func (in *Input) length() (int, error) {
	n, err := in.Uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(in.Remaining()) {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, n, in.Remaining())
	}
	return int(n), nil
}

func (in *Input) String() (string, error) {
	n, err := in.length()
	if err != nil {
		return "", err
	}
	b, err := in.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes returns a copy of the next length-prefixed byte slice.
func (in *Input) Bytes() ([]byte, error) {
	n, err := in.length()
	if err != nil {
		return nil, err
	}
	b, err := in.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
