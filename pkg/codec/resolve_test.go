package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/statecodec/pkg/schema"
)

func TestResolve_DifferentTypeRequiresMigration(t *testing.T) {
	reg := newTestRegistry()
	user, err := NewRecordCodec(reg, "UserRecord", nil)
	require.NoError(t, err)
	nested, err := NewRecordCodec(reg, "NestedRecord", nil)
	require.NoError(t, err)

	assert.Equal(t, RequiresMigration, user.Resolve(nested.Snapshot()))
	assert.Equal(t, RequiresMigration, nested.Resolve(user.Snapshot()))
	assert.Equal(t, RequiresMigration, user.Resolve(&PrimitiveSnapshot{Type: schema.KindInt32}))
	assert.Equal(t, RequiresMigration, Resolve(user, nil))
	assert.Equal(t, defaultUserOrder, fieldNames(user.FieldIDs()), "tables stay untouched")
}

func TestResolve_IdenticalSchemaIsCompatible(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)

	assert.Equal(t, Compatible, c.Resolve(old.Snapshot()))
}

func TestResolve_ReorderedFields(t *testing.T) {
	// codec A saw the fields in a different declaration order
	regA := newTestRegistry("d", "c", "nested", "a", "b", "e")
	a, err := NewRecordCodec(regA, "UserRecord", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"d", "c", "nested", "a", "b", "e"}, fieldNames(a.FieldIDs()))

	rec := sampleUser()
	data, err := a.Marshal(rec)
	require.NoError(t, err)

	b, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	require.Equal(t, defaultUserOrder, fieldNames(b.FieldIDs()))

	verdict := b.Resolve(a.Snapshot())
	assert.Equal(t, CompatibleWithReconfigure, verdict)
	assert.Equal(t, []string{"d", "c", "nested", "a", "b", "e"}, fieldNames(b.FieldIDs()))

	decoded, err := b.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestResolve_Idempotent(t *testing.T) {
	regA := newTestRegistry("d", "c", "nested", "a", "b", "e")
	a, err := NewRecordCodec(regA, "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	_, err = a.Marshal(&subC{})
	require.NoError(t, err)
	old := a.Snapshot()

	b, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubB", "SubA"})
	require.NoError(t, err)

	first := b.Resolve(old)
	fields, tags, cached := b.FieldIDs(), b.RegisteredTags(), b.CachedTypes()
	second := b.Resolve(old)

	assert.Equal(t, CompatibleWithReconfigure, first)
	assert.Equal(t, first, second)
	assert.Equal(t, fields, b.FieldIDs())
	assert.Equal(t, tags, b.RegisteredTags())
	assert.Equal(t, cached, b.CachedTypes())
}

func TestResolve_SwappedRegistrationsKeepTags(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	a, b := sampleSubA(), sampleSubB()
	dataA, err := old.Marshal(a)
	require.NoError(t, err)
	dataB, err := old.Marshal(b)
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubB", "SubA"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SubB": 0, "SubA": 1}, c.RegisteredTags())

	verdict := c.Resolve(old.Snapshot())
	assert.NotEqual(t, RequiresMigration, verdict)
	assert.Equal(t, CompatibleWithReconfigure, verdict)
	assert.Equal(t, old.RegisteredTags(), c.RegisteredTags())

	decodedA, err := c.Unmarshal(dataA)
	require.NoError(t, err)
	assert.Equal(t, a, decodedA)
	decodedB, err := c.Unmarshal(dataB)
	require.NoError(t, err)
	assert.Equal(t, b, decodedB)
}

func TestResolve_DroppedRegistrationReservesTag(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	dataA, err := old.Marshal(sampleSubA())
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubB", "SubC"})
	require.NoError(t, err)

	assert.Equal(t, CompatibleWithReconfigure, c.Resolve(old.Snapshot()))
	assert.Equal(t, map[string]int{"SubB": 1, "SubC": 2}, c.RegisteredTags())

	_, err = c.Unmarshal(dataA)
	assert.ErrorIs(t, err, ErrUnknownSchemaReference)

	data, err := c.Marshal(&subC{Flag: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{markerRegistered, 2}, data[:2])
}

func TestResolve_RepopulatesCache(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	a, b := sampleSubA(), sampleSubB()
	dataA, err := old.Marshal(a)
	require.NoError(t, err)
	dataB, err := old.Marshal(b)
	require.NoError(t, err)
	require.Equal(t, []string{"SubA", "SubB"}, old.CachedTypes())

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	require.Empty(t, c.CachedTypes())

	assert.Equal(t, CompatibleWithReconfigure, c.Resolve(old.Snapshot()))
	assert.Equal(t, []string{"SubA", "SubB"}, c.CachedTypes())

	decodedA, err := c.Unmarshal(dataA)
	require.NoError(t, err)
	assert.Equal(t, a, decodedA)
	decodedB, err := c.Unmarshal(dataB)
	require.NoError(t, err)
	assert.Equal(t, b, decodedB)
}

func TestResolve_PreviouslyCachedSubclassesBecomeRegistered(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	a, b := sampleSubA(), sampleSubB()
	dataA, err := old.Marshal(a)
	require.NoError(t, err)
	dataB, err := old.Marshal(b)
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)

	verdict := c.Resolve(old.Snapshot())
	assert.NotEqual(t, RequiresMigration, verdict)
	assert.Equal(t, map[string]int{"SubA": 0, "SubB": 1}, c.RegisteredTags())
	assert.Equal(t, []string{"SubA", "SubB"}, c.CachedTypes())

	// old self-describing bytes still decode through the cache tier
	decodedA, err := c.Unmarshal(dataA)
	require.NoError(t, err)
	assert.Equal(t, a, decodedA)
	decodedB, err := c.Unmarshal(dataB)
	require.NoError(t, err)
	assert.Equal(t, b, decodedB)

	// new bytes use the registered tier
	data, err := c.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, []byte{markerRegistered, 0}, data[:2])
	decodedA, err = c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, a, decodedA)
}

func TestResolve_AppendedFieldsReadOldPayloads(t *testing.T) {
	oldReg := newTestRegistry("a", "b", "c")
	old, err := NewRecordCodec(oldReg, "UserRecord", nil)
	require.NoError(t, err)
	data, err := old.Marshal(&userRecord{A: 3, B: "three", C: 3.5})
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	assert.Equal(t, Compatible, c.Resolve(old.Snapshot()))
	assert.Equal(t, defaultUserOrder, fieldNames(c.FieldIDs()))

	decoded, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, &userRecord{A: 3, B: "three", C: 3.5}, decoded)
}

func TestResolve_AppendedFieldsAfterReorder(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry("c", "a"), "UserRecord", nil)
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	assert.Equal(t, CompatibleWithReconfigure, c.Resolve(old.Snapshot()))
	assert.Equal(t, []string{"c", "a", "b", "d", "e", "nested"}, fieldNames(c.FieldIDs()))
}

func TestResolve_RemovedFieldRequiresMigration(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry("b", "a", "c"), "UserRecord", nil)
	require.NoError(t, err)
	assert.Equal(t, RequiresMigration, c.Resolve(old.Snapshot()))
	assert.Equal(t, []string{"b", "a", "c"}, fieldNames(c.FieldIDs()))
}

func TestResolve_ChangedFieldTypeRequiresMigration(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	snap := WithoutCodecs(old.Snapshot()).(*RecordSnapshot)
	snap.Fields[0].Snapshot = &PrimitiveSnapshot{Type: schema.KindInt64}

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)
	assert.Equal(t, RequiresMigration, c.Resolve(snap))
}

func TestResolve_NestedSubclassMigrationPropagates(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)
	snap := WithoutCodecs(old.Snapshot()).(*RecordSnapshot)
	sub := snap.Registered[0].Snapshot.(*RecordSnapshot)
	sub.Fields = append(sub.Fields, FieldSnapshot{
		ID:       schema.FieldID{Owner: "SubA", Name: "gone"},
		Snapshot: &PrimitiveSnapshot{Type: schema.KindString},
	})

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)
	assert.Equal(t, RequiresMigration, c.Resolve(snap))
}

func TestResolve_UnknownCachedSubclassRequiresMigration(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", nil)
	require.NoError(t, err)

	snap := WithoutCodecs(c.Snapshot()).(*RecordSnapshot)
	snap.Cached = []SubclassSnapshot{{Type: "Ghost", Snapshot: &RecordSnapshot{Type: "Ghost"}}}
	assert.Equal(t, RequiresMigration, c.Resolve(snap))
	assert.Empty(t, c.CachedTypes())
}

func TestResolve_ConflictingTagsRequireMigration(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	snap := WithoutCodecs(old.Snapshot()).(*RecordSnapshot)
	snap.Registered[1].Tag = 0

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA", "SubB"})
	require.NoError(t, err)
	assert.Equal(t, RequiresMigration, c.Resolve(snap))
}

func TestResolve_IgnoresDelegateReferences(t *testing.T) {
	old, err := NewRecordCodec(newTestRegistry("d", "c", "nested", "a", "b", "e"), "UserRecord", []string{"SubA"})
	require.NoError(t, err)
	_, err = old.Marshal(sampleSubB())
	require.NoError(t, err)

	c, err := NewRecordCodec(newTestRegistry(), "UserRecord", []string{"SubA"})
	require.NoError(t, err)
	assert.Equal(t, CompatibleWithReconfigure, c.Resolve(WithoutCodecs(old.Snapshot())))
	assert.Equal(t, []string{"d", "c", "nested", "a", "b", "e"}, fieldNames(c.FieldIDs()))
	assert.Equal(t, []string{"SubB"}, c.CachedTypes())
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "compatible", Compatible.String())
	assert.Equal(t, "compatible_with_reconfigure", CompatibleWithReconfigure.String())
	assert.Equal(t, "requires_migration", RequiresMigration.String())
	assert.Equal(t, "unknown", Verdict(9).String())
}
