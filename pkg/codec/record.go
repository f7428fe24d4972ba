package codec

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/schema"
	"github.com/ssargent/statecodec/pkg/wire"
)

// Record markers. These bytes are persisted and must never change meaning.
const (
	markerNull       byte = 0x00
	markerNoSubclass byte = 0x01
	markerRegistered byte = 0x02
	markerCached     byte = 0x03
)

// Option configures a RecordCodec
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for construction and resolution events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// fieldSlot binds a field to the delegate that encodes its value.
type fieldSlot struct {
	field schema.Field
	codec Codec
}

// RecordCodec encodes records of one registered type and any of its
// subtypes.
//
// The field table defines the wire order of the declared type's fields. Known
// subtypes are written either with a small stable tag (registered tier) or
// with their type name (cache tier, filled on first use). A RecordCodec is
// single-owner: encoding or decoding an unseen subtype mutates the cache
// tier, and Resolve rewrites the tables.
type RecordCodec struct {
	reg    *schema.Registry
	typ    *schema.Type
	logger *zap.Logger

	// registrations is the subclass list supplied at construction. It
	// applies to every record codec in the tree; tagged holds the entries
	// that are subtypes of typ, in tag order.
	registrations []string
	tagged        []string

	// baseline is the field table as constructed; fields is the current one
	baseline []fieldSlot
	fields   []fieldSlot

	// subclasses holds one codec per registered subtype, built at construction
	subclasses map[string]*RecordCodec
	tags       map[string]int
	byTag      map[int]string

	cache map[string]*RecordCodec
}

// NewRecordCodec builds the codec for the named record type.
//
// registrations lists record types to encode with stable tags wherever they
// appear: at the top level and in nested record fields alike. Every record
// codec in the tree tags the entries that are proper subtypes of its own
// type, numbered in list order. Entries unrelated to typeName are allowed;
// they only take effect in nested fields.
func NewRecordCodec(reg *schema.Registry, typeName string, registrations []string, opts ...Option) (*RecordCodec, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrUnsupportedSchema)
	}
	seen := make(map[string]bool, len(registrations))
	for _, sub := range registrations {
		typ, ok := reg.Lookup(sub)
		if !ok {
			return nil, fmt.Errorf("%w: registered type %s is not known", ErrUnsupportedSchema, sub)
		}
		if typ.New == nil {
			return nil, fmt.Errorf("%w: registered type %s has no constructor", ErrUnsupportedSchema, sub)
		}
		if seen[sub] {
			return nil, fmt.Errorf("%w: %s registered twice", ErrUnsupportedSchema, sub)
		}
		seen[sub] = true
	}

	b := newBuilder(reg, registrations, opts)
	return b.build(typeName, b.subtypesOf(typeName))
}

type builder struct {
	reg      *schema.Registry
	all      []string
	logger   *zap.Logger
	building map[string]*RecordCodec
}

func newBuilder(reg *schema.Registry, registrations []string, opts []Option) *builder {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &builder{
		reg:      reg,
		all:      registrations,
		logger:   o.logger,
		building: make(map[string]*RecordCodec),
	}
}

// subtypesOf returns the registrations that are proper subtypes of name,
// keeping their order.
func (b *builder) subtypesOf(name string) []string {
	var out []string
	for _, sub := range b.all {
		if sub != name && b.reg.IsSubtype(sub, name) {
			out = append(out, sub)
		}
	}
	return out
}

func (b *builder) forType(ref schema.TypeRef) (Codec, error) {
	if ref.Kind != schema.KindRecord {
		return NewPrimitive(ref.Kind)
	}
	if target, ok := b.building[ref.Record]; ok {
		// self-nesting: bind to the codec still under construction
		return &recursiveCodec{target: target}, nil
	}
	return b.build(ref.Record, b.subtypesOf(ref.Record))
}

func (b *builder) build(typeName string, tagged []string) (*RecordCodec, error) {
	typ, ok := b.reg.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: type %s is not registered", ErrUnsupportedSchema, typeName)
	}
	if typ.New == nil {
		return nil, fmt.Errorf("%w: type %s has no constructor", ErrUnsupportedSchema, typeName)
	}
	fields, err := b.reg.Fields(typeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSchema, err)
	}

	c := &RecordCodec{
		reg:           b.reg,
		typ:           typ,
		logger:        b.logger,
		registrations: b.all,
		tagged:        tagged,
		subclasses:    make(map[string]*RecordCodec, len(tagged)),
		tags:          make(map[string]int, len(tagged)),
		byTag:         make(map[int]string, len(tagged)),
		cache:         make(map[string]*RecordCodec),
	}
	b.building[typeName] = c
	defer delete(b.building, typeName)

	c.baseline = make([]fieldSlot, 0, len(fields))
	for _, f := range fields {
		delegate, err := b.forType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.ID, err)
		}
		c.baseline = append(c.baseline, fieldSlot{field: f, codec: delegate})
	}
	c.fields = append([]fieldSlot(nil), c.baseline...)

	for tag, sub := range tagged {
		sc, err := b.build(sub, b.subtypesOf(sub))
		if err != nil {
			return nil, fmt.Errorf("subclass %s: %w", sub, err)
		}
		c.subclasses[sub] = sc
		c.tags[sub] = tag
		c.byTag[tag] = sub
	}

	b.logger.Debug("built record codec",
		zap.String("type", typeName),
		zap.Int("fields", len(c.fields)),
		zap.Int("registered", len(tagged)))
	return c, nil
}

// Type returns the name of the declared record type
func (c *RecordCodec) Type() string { return c.typ.Name }

// Registry returns the registry the codec was built from
func (c *RecordCodec) Registry() *schema.Registry { return c.reg }

// Registrations returns the registration list the codec tree was constructed
// with, including entries that are not subtypes of Type.
func (c *RecordCodec) Registrations() []string {
	return append([]string(nil), c.registrations...)
}

// FieldIDs returns the current field table in wire order
func (c *RecordCodec) FieldIDs() []schema.FieldID {
	ids := make([]schema.FieldID, len(c.fields))
	for i, s := range c.fields {
		ids[i] = s.field.ID
	}
	return ids
}

// RegisteredTags returns the current tag of every registered subtype
func (c *RecordCodec) RegisteredTags() map[string]int {
	out := make(map[string]int, len(c.tags))
	for name, tag := range c.tags {
		out[name] = tag
	}
	return out
}

// CachedTypes returns the subtypes in the cache tier, sorted
func (c *RecordCodec) CachedTypes() []string {
	names := make([]string, 0, len(c.cache))
	for name := range c.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Duplicate returns an independent codec with the same layout, for use by
// another owner.
func (c *RecordCodec) Duplicate() (*RecordCodec, error) {
	d, err := NewRecordCodec(c.reg, c.typ.Name, c.registrations, WithLogger(c.logger))
	if err != nil {
		return nil, err
	}
	if v := d.Resolve(c.Snapshot()); v == RequiresMigration {
		return nil, fmt.Errorf("%w: duplicate of %s diverged from its source", ErrUnsupportedSchema, c.typ.Name)
	}
	return d, nil
}

// cached returns the cache-tier codec for a subtype, creating it on first use.
func (c *RecordCodec) cached(name string) (*RecordCodec, error) {
	if sc, ok := c.cache[name]; ok {
		return sc, nil
	}
	sc, err := c.newSubclassCodec(name)
	if err != nil {
		return nil, err
	}
	c.cache[name] = sc
	c.logger.Debug("cached subclass codec", zap.String("type", c.typ.Name), zap.String("subclass", name))
	return sc, nil
}

func (c *RecordCodec) newSubclassCodec(name string) (*RecordCodec, error) {
	if name == c.typ.Name || !c.reg.IsSubtype(name, c.typ.Name) {
		return nil, fmt.Errorf("%w: %s is not a subtype of %s", ErrUnknownSchemaReference, name, c.typ.Name)
	}
	b := newBuilder(c.reg, c.registrations, []Option{WithLogger(c.logger)})
	return b.build(name, b.subtypesOf(name))
}

// Encode writes a record reference, which may be nil.
func (c *RecordCodec) Encode(w wire.Writer, v any) error {
	if schema.IsNil(v) {
		w.PutByte(markerNull)
		return nil
	}
	actual, ok := c.reg.TypeOf(v)
	if !ok {
		return fmt.Errorf("%w: %T is not a registered record type", ErrValueMismatch, v)
	}
	if actual.Name == c.typ.Name {
		w.PutByte(markerNoSubclass)
		return c.encodeFields(w, v)
	}
	if !c.reg.IsSubtype(actual.Name, c.typ.Name) {
		return fmt.Errorf("%w: %s is not a %s", ErrValueMismatch, actual.Name, c.typ.Name)
	}
	if tag, ok := c.tags[actual.Name]; ok {
		w.PutByte(markerRegistered)
		w.PutUvarint(uint64(tag))
		return c.subclasses[actual.Name].Encode(w, v)
	}
	sc, err := c.cached(actual.Name)
	if err != nil {
		return err
	}
	w.PutByte(markerCached)
	w.PutString(actual.Name)
	return sc.Encode(w, v)
}

func (c *RecordCodec) encodeFields(w wire.Writer, rec any) error {
	w.PutUvarint(uint64(len(c.fields)))
	for _, s := range c.fields {
		v := s.field.Get(rec)
		if v == nil {
			w.PutBool(false)
			continue
		}
		w.PutBool(true)
		if err := s.codec.Encode(w, v); err != nil {
			return fmt.Errorf("field %s: %w", s.field.ID, err)
		}
	}
	return nil
}

// Decode reads a record reference. A null record decodes to nil.
func (c *RecordCodec) Decode(r wire.Reader) (any, error) {
	marker, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch marker {
	case markerNull:
		return nil, nil
	case markerNoSubclass:
		return c.decodeFields(r)
	case markerRegistered:
		tag, err := r.Uvarint()
		if err != nil {
			return nil, err
		}
		name, ok := c.byTag[int(tag)]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no subclass tag %d", ErrUnknownSchemaReference, c.typ.Name, tag)
		}
		return c.subclasses[name].Decode(r)
	case markerCached:
		name, err := r.String()
		if err != nil {
			return nil, err
		}
		if _, known := c.reg.Lookup(name); !known {
			return nil, fmt.Errorf("%w: subclass %s of %s is not registered", ErrUnknownSchemaReference, name, c.typ.Name)
		}
		sc, err := c.cached(name)
		if err != nil {
			return nil, err
		}
		return sc.Decode(r)
	default:
		return nil, fmt.Errorf("%w: unknown marker 0x%02x for %s", ErrMalformedRecord, marker, c.typ.Name)
	}
}

func (c *RecordCodec) decodeFields(r wire.Reader) (any, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(c.fields)) {
		return nil, fmt.Errorf("%w: %s payload has %d fields, table has %d", ErrMalformedRecord, c.typ.Name, n, len(c.fields))
	}
	rec := c.typ.New()
	for _, s := range c.fields[:n] {
		present, err := r.Bool()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.field.ID, err)
		}
		if !present {
			continue
		}
		v, err := s.codec.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.field.ID, err)
		}
		if err := s.field.Set(rec, v); err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", ErrValueMismatch, s.field.ID, err)
		}
	}
	return rec, nil
}

// CreateInstance returns a fresh zero record of the declared type
func (c *RecordCodec) CreateInstance() any { return c.typ.New() }

// Copy returns a deep copy of a record reference, which may be nil. Nested
// records are copied through their field delegates and subtypes through the
// registered or cache tier, the same way Encode dispatches them. Values must
// not contain reference cycles.
func (c *RecordCodec) Copy(v any) (any, error) {
	if schema.IsNil(v) {
		return nil, nil
	}
	actual, ok := c.reg.TypeOf(v)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a registered record type", ErrValueMismatch, v)
	}
	if actual.Name == c.typ.Name {
		return c.copyFields(v)
	}
	if !c.reg.IsSubtype(actual.Name, c.typ.Name) {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrValueMismatch, actual.Name, c.typ.Name)
	}
	if sc, ok := c.subclasses[actual.Name]; ok {
		return sc.Copy(v)
	}
	sc, err := c.cached(actual.Name)
	if err != nil {
		return nil, err
	}
	return sc.Copy(v)
}

func (c *RecordCodec) copyFields(src any) (any, error) {
	dst := c.typ.New()
	for _, s := range c.baseline {
		v := s.field.Get(src)
		if v == nil {
			continue
		}
		cp, err := s.codec.Copy(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", s.field.ID, err)
		}
		if err := s.field.Set(dst, cp); err != nil {
			return nil, fmt.Errorf("%w: field %s: %w", ErrValueMismatch, s.field.ID, err)
		}
	}
	return dst, nil
}

// Marshal encodes a record into a new byte slice
func (c *RecordCodec) Marshal(v any) ([]byte, error) {
	out := wire.NewOutput(64)
	if err := c.Encode(out, v); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Unmarshal decodes a record and rejects trailing bytes.
func (c *RecordCodec) Unmarshal(data []byte) (any, error) {
	in := wire.NewInput(data)
	v, err := c.Decode(in)
	if err != nil {
		return nil, err
	}
	if in.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, in.Remaining())
	}
	return v, nil
}

// recursiveCodec is the delegate of a field whose type is a record still
// being built further up the construction chain. It forwards to that codec.
type recursiveCodec struct {
	target *RecordCodec
}

func (c *recursiveCodec) Encode(w wire.Writer, v any) error { return c.target.Encode(w, v) }

func (c *recursiveCodec) Decode(r wire.Reader) (any, error) { return c.target.Decode(r) }

func (c *recursiveCodec) Copy(v any) (any, error) { return c.target.Copy(v) }

func (c *recursiveCodec) CreateInstance() any { return c.target.CreateInstance() }

func (c *recursiveCodec) Snapshot() Snapshot {
	return &RecursiveSnapshot{Type: c.target.typ.Name}
}

func (c *recursiveCodec) Resolve(old Snapshot) Verdict {
	if rs, ok := old.(*RecursiveSnapshot); ok && rs.Type == c.target.typ.Name {
		return Compatible
	}
	return RequiresMigration
}
