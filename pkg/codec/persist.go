package codec

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/schema"
	"github.com/ssargent/statecodec/pkg/wire"
)

const (
	recordSnapshotVersion = 1
	codecRefVersion       = 1
	maxSnapshotDepth      = 256

	codecRefPrimitive = "primitive"
	codecRefRecord    = "record"
)

// CodecLoader rebuilds a delegate codec from the bytes EncodeCodec produced.
type CodecLoader interface {
	LoadCodec(data []byte) (Codec, error)
}

// CodecLoaderFunc adapts a function to CodecLoader
type CodecLoaderFunc func(data []byte) (Codec, error)

func (f CodecLoaderFunc) LoadCodec(data []byte) (Codec, error) { return f(data) }

// NopLoader never rebuilds delegates. Snapshots read with it carry no codec
// references, which is enough for resolution and inspection.
var NopLoader CodecLoader = CodecLoaderFunc(func([]byte) (Codec, error) { return nil, nil })

// RegistryLoader rebuilds delegates against a type registry.
type RegistryLoader struct {
	Registry *schema.Registry
	Logger   *zap.Logger
}

func (l RegistryLoader) LoadCodec(data []byte) (Codec, error) {
	in := wire.NewInput(data)
	version, err := in.Byte()
	if err != nil {
		return nil, err
	}
	if version != codecRefVersion {
		return nil, fmt.Errorf("unsupported codec reference version %d", version)
	}
	kind, err := in.String()
	if err != nil {
		return nil, err
	}
	switch kind {
	case codecRefPrimitive:
		name, err := in.String()
		if err != nil {
			return nil, err
		}
		k, ok := schema.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown primitive kind %q", name)
		}
		return NewPrimitive(k)
	case codecRefRecord:
		typeName, err := in.String()
		if err != nil {
			return nil, err
		}
		n, err := in.Uvarint()
		if err != nil {
			return nil, err
		}
		if n > uint64(in.Remaining()) {
			return nil, fmt.Errorf("registration count %d exceeds input", n)
		}
		registrations := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			sub, err := in.String()
			if err != nil {
				return nil, err
			}
			registrations = append(registrations, sub)
		}
		return NewRecordCodec(l.Registry, typeName, registrations, WithLogger(l.Logger))
	default:
		return nil, fmt.Errorf("unknown codec reference kind %q", kind)
	}
}

// EncodeCodec serializes a reference to a delegate codec. Codecs this package
// does not know produce an empty reference.
func EncodeCodec(c Codec) []byte {
	out := wire.NewOutput(32)
	out.PutByte(codecRefVersion)
	switch cc := c.(type) {
	case *primitiveCodec:
		out.PutString(codecRefPrimitive)
		out.PutString(cc.kind.String())
	case *RecordCodec:
		putRecordRef(out, cc)
	case *recursiveCodec:
		putRecordRef(out, cc.target)
	default:
		return nil
	}
	return out.Bytes()
}

func putRecordRef(out *wire.Output, c *RecordCodec) {
	out.PutString(codecRefRecord)
	out.PutString(c.typ.Name)
	out.PutUvarint(uint64(len(c.registrations)))
	for _, sub := range c.registrations {
		out.PutString(sub)
	}
}

// WriteSnapshot serializes a snapshot, including an opaque, length-prefixed
// reference to every delegate codec it carries.
func WriteSnapshot(w wire.Writer, s Snapshot) error {
	switch ss := s.(type) {
	case *PrimitiveSnapshot:
		w.PutString(ss.snapshotKind())
	case *RecursiveSnapshot:
		w.PutString(ss.snapshotKind())
		w.PutString(ss.Type)
	case *RecordSnapshot:
		w.PutString(ss.snapshotKind())
		w.PutUvarint(recordSnapshotVersion)
		w.PutString(ss.Type)

		w.PutUvarint(uint64(len(ss.Fields)))
		for _, f := range ss.Fields {
			w.PutString(f.ID.Owner)
			w.PutString(f.ID.Name)
			w.PutBytes(EncodeCodec(f.Codec))
			if err := WriteSnapshot(w, f.Snapshot); err != nil {
				return fmt.Errorf("field %s: %w", f.ID, err)
			}
		}

		w.PutUvarint(uint64(len(ss.Registered)))
		for _, sub := range ss.Registered {
			w.PutString(sub.Type)
			w.PutUvarint(uint64(sub.Tag))
			w.PutBytes(EncodeCodec(sub.Codec))
			if err := WriteSnapshot(w, sub.Snapshot); err != nil {
				return fmt.Errorf("registered subclass %s: %w", sub.Type, err)
			}
		}

		w.PutUvarint(uint64(len(ss.Cached)))
		for _, sub := range ss.Cached {
			w.PutString(sub.Type)
			w.PutBytes(EncodeCodec(sub.Codec))
			if err := WriteSnapshot(w, sub.Snapshot); err != nil {
				return fmt.Errorf("cached subclass %s: %w", sub.Type, err)
			}
		}
	case nil:
		return fmt.Errorf("%w: nil snapshot", ErrCorruptSnapshot)
	default:
		return fmt.Errorf("%w: unsupported snapshot type %T", ErrCorruptSnapshot, s)
	}
	return nil
}

// SnapshotReader reads persisted snapshots. A delegate reference the Loader
// cannot rebuild is logged and left nil; the nested snapshot next to it is
// still read and the overall read does not fail.
type SnapshotReader struct {
	Loader CodecLoader
	Logger *zap.Logger
}

// ReadSnapshot reads a snapshot with the given loader and no logging.
func ReadSnapshot(r wire.Reader, loader CodecLoader) (Snapshot, error) {
	return SnapshotReader{Loader: loader}.Read(r)
}

// Read reads one snapshot
func (sr SnapshotReader) Read(r wire.Reader) (Snapshot, error) {
	if sr.Loader == nil {
		sr.Loader = NopLoader
	}
	if sr.Logger == nil {
		sr.Logger = zap.NewNop()
	}
	s, err := sr.read(r, 0)
	if err != nil && !errors.Is(err, ErrCorruptSnapshot) {
		err = fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	return s, err
}

func (sr SnapshotReader) read(r wire.Reader, depth int) (Snapshot, error) {
	if depth > maxSnapshotDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrCorruptSnapshot, maxSnapshotDepth)
	}
	kind, err := r.String()
	if err != nil {
		return nil, err
	}

	switch kind {
	case snapshotKindRecursive:
		typeName, err := r.String()
		if err != nil {
			return nil, err
		}
		return &RecursiveSnapshot{Type: typeName}, nil
	case snapshotKindRecord:
		return sr.readRecord(r, depth)
	default:
		k, ok := schema.ParseKind(kind)
		if !ok || k == schema.KindRecord {
			return nil, fmt.Errorf("%w: unknown snapshot kind %q", ErrCorruptSnapshot, kind)
		}
		return &PrimitiveSnapshot{Type: k}, nil
	}
}

func (sr SnapshotReader) readRecord(r wire.Reader, depth int) (*RecordSnapshot, error) {
	version, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if version != recordSnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported record snapshot version %d", ErrCorruptSnapshot, version)
	}
	typeName, err := r.String()
	if err != nil {
		return nil, err
	}
	s := &RecordSnapshot{Type: typeName}

	n, err := sr.count(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var f FieldSnapshot
		if f.ID.Owner, err = r.String(); err != nil {
			return nil, err
		}
		if f.ID.Name, err = r.String(); err != nil {
			return nil, err
		}
		if f.Codec, err = sr.codecRef(r, typeName, f.ID.String()); err != nil {
			return nil, err
		}
		if f.Snapshot, err = sr.read(r, depth+1); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.ID, err)
		}
		s.Fields = append(s.Fields, f)
	}

	if n, err = sr.count(r); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var sub SubclassSnapshot
		if sub.Type, err = r.String(); err != nil {
			return nil, err
		}
		tag, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		if tag > uint64(maxTag) {
			return nil, fmt.Errorf("%w: subclass tag %d out of range", ErrCorruptSnapshot, tag)
		}
		sub.Tag = int(tag)
		if sub.Codec, err = sr.codecRef(r, typeName, sub.Type); err != nil {
			return nil, err
		}
		if sub.Snapshot, err = sr.read(r, depth+1); err != nil {
			return nil, fmt.Errorf("registered subclass %s: %w", sub.Type, err)
		}
		s.Registered = append(s.Registered, sub)
	}

	if n, err = sr.count(r); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		var sub SubclassSnapshot
		if sub.Type, err = r.String(); err != nil {
			return nil, err
		}
		if sub.Codec, err = sr.codecRef(r, typeName, sub.Type); err != nil {
			return nil, err
		}
		if sub.Snapshot, err = sr.read(r, depth+1); err != nil {
			return nil, fmt.Errorf("cached subclass %s: %w", sub.Type, err)
		}
		s.Cached = append(s.Cached, sub)
	}
	return s, nil
}

const maxTag = 1<<31 - 1

// count reads an entry count, bounded by the remaining input since every
// entry takes at least one byte.
func (sr SnapshotReader) count(r wire.Reader) (int, error) {
	n, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	if in, ok := r.(*wire.Input); ok && n > uint64(in.Remaining()) {
		return 0, fmt.Errorf("%w: entry count %d exceeds input", ErrCorruptSnapshot, n)
	}
	if n > maxTag {
		return 0, fmt.Errorf("%w: entry count %d out of range", ErrCorruptSnapshot, n)
	}
	return int(n), nil
}

// codecRef reads a delegate reference. Only a failure to read the reference
// bytes themselves is an error; a failure to rebuild the codec is not.
func (sr SnapshotReader) codecRef(r wire.Reader, owner, entry string) (Codec, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	c, err := sr.loadCodec(data)
	if err != nil {
		sr.Logger.Warn("delegate codec could not be rebuilt; keeping its snapshot only",
			zap.String("type", owner),
			zap.String("entry", entry),
			zap.Error(fmt.Errorf("%w: %w", ErrDelegateReconstruction, err)))
		return nil, nil
	}
	return c, nil
}

func (sr SnapshotReader) loadCodec(data []byte) (c Codec, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = nil, fmt.Errorf("loader panicked: %v", p)
		}
	}()
	return sr.Loader.LoadCodec(data)
}

// MarshalSnapshot serializes a snapshot into a new byte slice
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	out := wire.NewOutput(256)
	if err := WriteSnapshot(out, s); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// UnmarshalSnapshot reads a snapshot and rejects trailing bytes.
func UnmarshalSnapshot(data []byte, reader SnapshotReader) (Snapshot, error) {
	in := wire.NewInput(data)
	s, err := reader.Read(in)
	if err != nil {
		return nil, err
	}
	if in.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, in.Remaining())
	}
	return s, nil
}
