package codec

import (
	"fmt"
	"time"

	"github.com/ssargent/statecodec/pkg/schema"
	"github.com/ssargent/statecodec/pkg/wire"
)

// primitiveCodec encodes one primitive kind. It is stateless.
//
// Times are written as seconds and nanoseconds since the Unix epoch and read
// back in UTC: the instant survives a round trip, the location does not.
type primitiveCodec struct {
	kind schema.Kind
}

// NewPrimitive returns the codec for a primitive kind
func NewPrimitive(kind schema.Kind) (Codec, error) {
	switch kind {
	case schema.KindBool, schema.KindInt32, schema.KindInt64, schema.KindFloat32, schema.KindFloat64,
		schema.KindString, schema.KindBytes, schema.KindInt32s, schema.KindTime:
		return &primitiveCodec{kind: kind}, nil
	default:
		return nil, fmt.Errorf("%w: no codec for kind %s", ErrUnsupportedSchema, kind)
	}
}

func (c *primitiveCodec) mismatch(v any) error {
	return fmt.Errorf("%w: %s codec cannot encode %T", ErrValueMismatch, c.kind, v)
}

func (c *primitiveCodec) Encode(w wire.Writer, v any) error {
	switch c.kind {
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return c.mismatch(v)
		}
		w.PutBool(b)
	case schema.KindInt32:
		i, ok := v.(int32)
		if !ok {
			return c.mismatch(v)
		}
		w.PutVarint(int64(i))
	case schema.KindInt64:
		i, ok := v.(int64)
		if !ok {
			return c.mismatch(v)
		}
		w.PutVarint(i)
	case schema.KindFloat32:
		f, ok := v.(float32)
		if !ok {
			return c.mismatch(v)
		}
		w.PutFloat32(f)
	case schema.KindFloat64:
		f, ok := v.(float64)
		if !ok {
			return c.mismatch(v)
		}
		w.PutFloat64(f)
	case schema.KindString:
		s, ok := v.(string)
		if !ok {
			return c.mismatch(v)
		}
		w.PutString(s)
	case schema.KindBytes:
		b, ok := v.([]byte)
		if !ok {
			return c.mismatch(v)
		}
		w.PutBytes(b)
	case schema.KindInt32s:
		s, ok := v.([]int32)
		if !ok {
			return c.mismatch(v)
		}
		w.PutUvarint(uint64(len(s)))
		for _, i := range s {
			w.PutVarint(int64(i))
		}
	case schema.KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return c.mismatch(v)
		}
		w.PutVarint(t.Unix())
		w.PutUvarint(uint64(t.Nanosecond()))
	default:
		return c.mismatch(v)
	}
	return nil
}

func (c *primitiveCodec) Decode(r wire.Reader) (any, error) {
	switch c.kind {
	case schema.KindBool:
		return r.Bool()
	case schema.KindInt32:
		i, err := r.Varint()
		if err != nil {
			return nil, err
		}
		if int64(int32(i)) != i {
			return nil, fmt.Errorf("%w: int32 value %d out of range", ErrMalformedRecord, i)
		}
		return int32(i), nil
	case schema.KindInt64:
		return r.Varint()
	case schema.KindFloat32:
		return r.Float32()
	case schema.KindFloat64:
		return r.Float64()
	case schema.KindString:
		return r.String()
	case schema.KindBytes:
		return r.Bytes()
	case schema.KindInt32s:
		n, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		// every element takes at least one byte
		if in, ok := r.(*wire.Input); ok && n > uint64(in.Remaining()) {
			return nil, fmt.Errorf("%w: int32 slice length %d exceeds input", ErrMalformedRecord, n)
		}
		s := make([]int32, n)
		for i := range s {
			v, err := r.Varint()
			if err != nil {
				return nil, err
			}
			if int64(int32(v)) != v {
				return nil, fmt.Errorf("%w: int32 slice element %d out of range", ErrMalformedRecord, v)
			}
			s[i] = int32(v)
		}
		return s, nil
	case schema.KindTime:
		sec, err := r.Varint()
		if err != nil {
			return nil, err
		}
		nsec, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		if nsec >= uint64(time.Second) {
			return nil, fmt.Errorf("%w: nanoseconds %d out of range", ErrMalformedRecord, nsec)
		}
		return time.Unix(sec, int64(nsec)).UTC(), nil
	default:
		return nil, fmt.Errorf("%w: no codec for kind %s", ErrUnsupportedSchema, c.kind)
	}
}

// Copy returns v itself for immutable kinds and a fresh slice for bytes and
// int32 slices.
func (c *primitiveCodec) Copy(v any) (any, error) {
	switch c.kind {
	case schema.KindBool:
		if _, ok := v.(bool); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindInt32:
		if _, ok := v.(int32); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindInt64:
		if _, ok := v.(int64); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindFloat32:
		if _, ok := v.(float32); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindFloat64:
		if _, ok := v.(float64); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindString:
		if _, ok := v.(string); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindTime:
		if _, ok := v.(time.Time); !ok {
			return nil, c.mismatch(v)
		}
	case schema.KindBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, c.mismatch(v)
		}
		return append([]byte{}, b...), nil
	case schema.KindInt32s:
		s, ok := v.([]int32)
		if !ok {
			return nil, c.mismatch(v)
		}
		return append([]int32{}, s...), nil
	default:
		return nil, c.mismatch(v)
	}
	return v, nil
}

func (c *primitiveCodec) CreateInstance() any {
	switch c.kind {
	case schema.KindBool:
		return false
	case schema.KindInt32:
		return int32(0)
	case schema.KindInt64:
		return int64(0)
	case schema.KindFloat32:
		return float32(0)
	case schema.KindFloat64:
		return float64(0)
	case schema.KindString:
		return ""
	case schema.KindBytes:
		return []byte{}
	case schema.KindInt32s:
		return []int32{}
	case schema.KindTime:
		return time.Time{}
	default:
		return nil
	}
}

func (c *primitiveCodec) Snapshot() Snapshot {
	return &PrimitiveSnapshot{Type: c.kind}
}

func (c *primitiveCodec) Resolve(old Snapshot) Verdict {
	if ps, ok := old.(*PrimitiveSnapshot); ok && ps.Type == c.kind {
		return Compatible
	}
	return RequiresMigration
}
