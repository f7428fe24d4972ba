package codec

import (
	"sort"

	"github.com/ssargent/statecodec/pkg/schema"
)

// Snapshot is an immutable description of a codec's schema at the time it was
// taken. The concrete types are *PrimitiveSnapshot, *RecordSnapshot and
// *RecursiveSnapshot.
type Snapshot interface {
	snapshotKind() string
}

const (
	snapshotKindRecord    = "record"
	snapshotKindRecursive = "recursive"
)

// PrimitiveSnapshot describes a primitive codec.
type PrimitiveSnapshot struct {
	Type schema.Kind
}

func (s *PrimitiveSnapshot) snapshotKind() string { return s.Type.String() }

// RecursiveSnapshot stands in for a record type nested inside itself.
type RecursiveSnapshot struct {
	Type string
}

func (s *RecursiveSnapshot) snapshotKind() string { return snapshotKindRecursive }

// RecordSnapshot describes a record codec: its field table in wire order and
// both tiers of its subclass registry.
//
// Codec references are optional. They may be nil after a snapshot is read
// back, and resolution never uses them.
type RecordSnapshot struct {
	Type       string
	Fields     []FieldSnapshot
	Registered []SubclassSnapshot
	Cached     []SubclassSnapshot // sorted by type name
}

func (s *RecordSnapshot) snapshotKind() string { return snapshotKindRecord }

// FieldSnapshot is one entry of a record's field table.
type FieldSnapshot struct {
	ID       schema.FieldID
	Codec    Codec
	Snapshot Snapshot
}

// SubclassSnapshot is one entry of a subclass tier. Tag is meaningful only for
// registered subclasses.
type SubclassSnapshot struct {
	Type     string
	Tag      int
	Codec    Codec
	Snapshot Snapshot
}

// FieldIDs returns the field identities in wire order
func (s *RecordSnapshot) FieldIDs() []schema.FieldID {
	ids := make([]schema.FieldID, len(s.Fields))
	for i, f := range s.Fields {
		ids[i] = f.ID
	}
	return ids
}

// WithoutCodecs returns a deep copy of s with every delegate reference
// cleared, which is the part of a snapshot that survives persistence
// unconditionally.
func WithoutCodecs(s Snapshot) Snapshot {
	rs, ok := s.(*RecordSnapshot)
	if !ok {
		return s
	}
	out := &RecordSnapshot{Type: rs.Type}
	if rs.Fields != nil {
		out.Fields = make([]FieldSnapshot, len(rs.Fields))
		for i, f := range rs.Fields {
			out.Fields[i] = FieldSnapshot{ID: f.ID, Snapshot: WithoutCodecs(f.Snapshot)}
		}
	}
	out.Registered = subclassesWithoutCodecs(rs.Registered)
	out.Cached = subclassesWithoutCodecs(rs.Cached)
	return out
}

func subclassesWithoutCodecs(in []SubclassSnapshot) []SubclassSnapshot {
	if in == nil {
		return nil
	}
	out := make([]SubclassSnapshot, len(in))
	for i, s := range in {
		out[i] = SubclassSnapshot{Type: s.Type, Tag: s.Tag, Snapshot: WithoutCodecs(s.Snapshot)}
	}
	return out
}

// Snapshot describes the codec's current field table and subclass tiers,
// including every delegate's own snapshot.
func (c *RecordCodec) Snapshot() Snapshot {
	s := &RecordSnapshot{Type: c.typ.Name}
	for _, f := range c.fields {
		s.Fields = append(s.Fields, FieldSnapshot{
			ID:       f.field.ID,
			Codec:    f.codec,
			Snapshot: f.codec.Snapshot(),
		})
	}

	names := make([]string, 0, len(c.tags))
	for name := range c.tags {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return c.tags[names[i]] < c.tags[names[j]] })
	for _, name := range names {
		sc := c.subclasses[name]
		s.Registered = append(s.Registered, SubclassSnapshot{
			Type:     name,
			Tag:      c.tags[name],
			Codec:    sc,
			Snapshot: sc.Snapshot(),
		})
	}

	for _, name := range c.CachedTypes() {
		sc := c.cache[name]
		s.Cached = append(s.Cached, SubclassSnapshot{
			Type:     name,
			Codec:    sc,
			Snapshot: sc.Snapshot(),
		})
	}
	return s
}
