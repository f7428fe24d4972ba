package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/statecodec/pkg/schema"
	"github.com/ssargent/statecodec/pkg/wire"
)

func TestRecordCodec_RoundTrip(t *testing.T) {
	reg := newTestRegistry()
	c, err := NewRecordCodec(reg, "UserRecord", nil)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		record any
	}{
		{name: "full record", record: sampleUser()},
		{name: "zero record", record: &userRecord{}},
		{name: "null nested", record: &userRecord{A: -5, B: "no nested", E: testTime}},
		{name: "empty slice", record: &userRecord{D: []int32{}, E: testTime}},
		{name: "unicode", record: &userRecord{B: "🔑 émojis", E: testTime}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := c.Marshal(tc.record)
			require.NoError(t, err)
			assert.Equal(t, markerNoSubclass, data[0])

			decoded, err := c.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, tc.record, decoded)
		})
	}
}

func TestRecordCodec_NullRecord(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)

	for _, v := range []any{nil, (*userRecord)(nil)} {
		data, err := c.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, []byte{markerNull}, data)

		decoded, err := c.Unmarshal(data)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	}
}

func TestRecordCodec_RegisteredSubclasses(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SubA": 0, "SubB": 1}, c.RegisteredTags())

	b := sampleSubB()
	data, err := c.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{markerRegistered, 1}, data[:2])

	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
	assert.Empty(t, c.CachedTypes())
}

func TestRecordCodec_CachedSubclasses(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	assert.Empty(t, c.CachedTypes())

	a := sampleSubA()
	data, err := c.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, markerCached, data[0])
	assert.Equal(t, []string{"SubA"}, c.CachedTypes())

	// a fresh codec learns the subclass while decoding
	fresh, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	decoded, err := fresh.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
	assert.Equal(t, []string{"SubA"}, fresh.CachedTypes())
}

func TestRecordCodec_SubclassAsNestedField(t *testing.T) {
	reg := schema.NewRegistry()
	reg.MustRegister(nestedType(), userType(), subAType(), subBType(), subCType(), listNodeType(),
		schema.Type{
			Name: "Holder",
			New:  func() any { return &holder{} },
			Fields: []schema.Field{
				schema.FieldOf("user", schema.RecordRef("UserRecord"),
					func(h *holder) any { return h.User },
					func(h *holder, v any) { h.User = v }),
			},
		})

	c, err := NewRecordCodec(reg, "Holder", []string{"SubA"})
	require.NoError(t, err)

	h := &holder{User: sampleSubA()}
	data, err := c.Marshal(h)
	require.NoError(t, err)

	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)

	// the registration applies to the nested field, not to Holder itself
	assert.Empty(t, c.RegisteredTags())
	assert.Equal(t, []string{"SubA"}, c.Registrations())
	user := c.fields[0].codec.(*RecordCodec)
	assert.Equal(t, map[string]int{"SubA": 0}, user.RegisteredTags())
	assert.Equal(t, []byte{markerNoSubclass, 1, 1, markerRegistered, 0}, data[:5])
	assert.Empty(t, user.CachedTypes())
}

type holder struct {
	User any
}

type typedHolder struct {
	User *userRecord
}

func typedHolderType() schema.Type {
	return schema.Type{
		Name: "TypedHolder",
		New:  func() any { return &typedHolder{} },
		Fields: []schema.Field{
			schema.FieldOf("user", schema.RecordRef("UserRecord"),
				func(h *typedHolder) *userRecord { return h.User },
				func(h *typedHolder, v *userRecord) { h.User = v }),
		},
	}
}

func TestRecordCodec_SubclassIntoConcreteField(t *testing.T) {
	reg := newTestRegistry()
	reg.MustRegister(typedHolderType())

	users, err := NewRecordCodec(reg, "UserRecord", nil)
	require.NoError(t, err)
	sub, err := users.Marshal(sampleSubA())
	require.NoError(t, err)
	require.Equal(t, markerCached, sub[0])

	// a TypedHolder whose user field carries a SubA
	data := append([]byte{markerNoSubclass, 1, 1}, sub...)

	c, err := NewRecordCodec(reg, "TypedHolder", nil)
	require.NoError(t, err)
	var decoded any
	require.NotPanics(t, func() { decoded, err = c.Unmarshal(data) })
	assert.ErrorIs(t, err, ErrValueMismatch)
	assert.ErrorIs(t, err, schema.ErrFieldValue)
	assert.Nil(t, decoded)

	valid, err := c.Marshal(&typedHolder{User: sampleUser()})
	require.NoError(t, err)
	decoded, err = c.Unmarshal(valid)
	require.NoError(t, err)
	assert.Equal(t, &typedHolder{User: sampleUser()}, decoded)
}

func TestNewRecordCodec_Errors(t *testing.T) {
	reg := newTestRegistry()

	testCases := []struct {
		name          string
		typeName      string
		registrations []string
	}{
		{name: "unknown type", typeName: "Ghost"},
		{name: "unknown registration", typeName: "UserRecord", registrations: []string{"SubA", "Ghost"}},
		{name: "duplicate registration", typeName: "UserRecord", registrations: []string{"SubA", "SubA"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRecordCodec(reg, tc.typeName, tc.registrations)
			assert.ErrorIs(t, err, ErrUnsupportedSchema)
		})
	}

	t.Run("no constructor", func(t *testing.T) {
		reg := schema.NewRegistry()
		reg.MustRegister(schema.Type{Name: "Abstract"})
		_, err := NewRecordCodec(reg, "Abstract", nil)
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})

	t.Run("registration without constructor", func(t *testing.T) {
		reg := newTestRegistry()
		reg.MustRegister(schema.Type{Name: "AbstractUser", Super: "UserRecord",
			Base: func(rec any) any { return rec }})
		_, err := NewRecordCodec(reg, "UserRecord", []string{"AbstractUser"})
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})

	t.Run("field type without codec", func(t *testing.T) {
		reg := schema.NewRegistry()
		reg.MustRegister(schema.Type{
			Name: "Broken",
			New:  func() any { return &nestedRecord{} },
			Fields: []schema.Field{
				schema.FieldOf("id", schema.RecordRef("Missing"),
					func(r *nestedRecord) int64 { return r.ID },
					func(r *nestedRecord, v int64) { r.ID = v }),
			},
		})
		_, err := NewRecordCodec(reg, "Broken", nil)
		assert.ErrorIs(t, err, ErrUnsupportedSchema)
	})
}

func TestNewRecordCodec_UnrelatedRegistrations(t *testing.T) {
	reg := newTestRegistry()

	c, err := NewRecordCodec(reg, "UserRecord", []string{"NestedRecord", "UserRecord", "SubB"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SubB": 0}, c.RegisteredTags())
	assert.Equal(t, []string{"NestedRecord", "UserRecord", "SubB"}, c.Registrations())

	b := sampleSubB()
	data, err := c.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{markerRegistered, 0}, data[:2])
	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)

	d, err := c.Duplicate()
	require.NoError(t, err)
	assert.Equal(t, c.RegisteredTags(), d.RegisteredTags())
}

func TestRecordCodec_DecodeErrors(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)

	cachedName := func(name string) []byte {
		out := wire.NewOutput(16)
		out.PutByte(markerCached)
		out.PutString(name)
		return out.Bytes()
	}

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{name: "unknown tag", data: []byte{markerRegistered, 5}, want: ErrUnknownSchemaReference},
		{name: "unknown type name", data: cachedName("Ghost"), want: ErrUnknownSchemaReference},
		{name: "type name of unrelated type", data: cachedName("NestedRecord"), want: ErrUnknownSchemaReference},
		{name: "unknown marker", data: []byte{0x7f}, want: ErrMalformedRecord},
		{name: "too many fields", data: []byte{markerNoSubclass, 9}, want: ErrMalformedRecord},
		{name: "trailing bytes", data: []byte{markerNull, 0}, want: ErrMalformedRecord},
		{name: "truncated", data: []byte{markerNoSubclass, 6, 1}, want: wire.ErrShortBuffer},
		{name: "empty", data: nil, want: wire.ErrShortBuffer},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Unmarshal(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRecordCodec_EncodeMismatch(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)

	_, err = c.Marshal(&nestedRecord{})
	assert.ErrorIs(t, err, ErrValueMismatch)

	_, err = c.Marshal("not a record")
	assert.ErrorIs(t, err, ErrValueMismatch)

	_, err = c.Marshal(userRecord{})
	assert.ErrorIs(t, err, ErrValueMismatch, "records are passed by pointer")
}

func TestRecordCodec_RecursiveType(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "ListNode", nil)
	require.NoError(t, err)

	list := &listNode{Value: 1, Next: &listNode{Value: 2, Next: &listNode{Value: 3}}}
	data, err := c.Marshal(list)
	require.NoError(t, err)

	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, list, decoded)

	snap, ok := c.Snapshot().(*RecordSnapshot)
	require.True(t, ok)
	require.Len(t, snap.Fields, 2)
	assert.Equal(t, &RecursiveSnapshot{Type: "ListNode"}, snap.Fields[1].Snapshot)

	other, err := NewRecordCodec(newTestRegistry(), "ListNode", nil)
	require.NoError(t, err)
	assert.Equal(t, Compatible, other.Resolve(snap))
}

func TestRecordCodec_Duplicate(t *testing.T) {
	reg := newTestRegistry()
	c, err := NewRecordCodec(reg, "UserRecord", []string{"SubB", "SubA"})
	require.NoError(t, err)

	old, err := NewRecordCodec(newTestRegistry("d", "c", "nested", "a", "b", "e"), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	require.Equal(t, CompatibleWithReconfigure, c.Resolve(old.Snapshot()))

	_, err = c.Marshal(sampleSubB())
	require.NoError(t, err)
	_, err = c.Marshal(&subC{})
	require.NoError(t, err)

	d, err := c.Duplicate()
	require.NoError(t, err)
	assert.NotSame(t, c, d)
	assert.Equal(t, c.FieldIDs(), d.FieldIDs())
	assert.Equal(t, c.RegisteredTags(), d.RegisteredTags())
	assert.Equal(t, c.CachedTypes(), d.CachedTypes())

	a := sampleSubA()
	data, err := c.Marshal(a)
	require.NoError(t, err)
	decoded, err := d.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}
