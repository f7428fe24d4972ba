package codec

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/statecodec/pkg/schema"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestDescribe_Golden(t *testing.T) {
	c := populatedCodec(t, newTestRegistry())
	newGoldie(t).Assert(t, "user_record", []byte(Describe(c.Snapshot())))
}

func TestDescribe_RecursiveGolden(t *testing.T) {
	c, err := NewRecordCodec(newTestRegistry(), "ListNode", nil)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "list_node", []byte(Describe(c.Snapshot())))
}

func TestDescribe_IgnoresDelegateReferences(t *testing.T) {
	snap := populatedCodec(t, newTestRegistry()).Snapshot()
	assert.Equal(t, Describe(snap), Describe(WithoutCodecs(snap)))
}

func TestDescribe_Primitive(t *testing.T) {
	assert.Equal(t, "float64\n", Describe(&PrimitiveSnapshot{Type: schema.KindFloat64}))
	assert.Equal(t, "<nil>\n", Describe(nil))
}
