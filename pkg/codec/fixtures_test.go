package codec

import (
	"time"

	"github.com/ssargent/statecodec/pkg/schema"
)

type nestedRecord struct {
	ID    int64
	Label string
}

type userRecord struct {
	A      int32
	B      string
	C      float64
	D      []int32
	E      time.Time
	Nested *nestedRecord
}

type subA struct {
	userRecord
	Extra string
}

type subB struct {
	userRecord
	Weight float32
}

type subC struct {
	userRecord
	Flag bool
}

type listNode struct {
	Value int32
	Next  *listNode
}

var defaultUserOrder = []string{"a", "b", "c", "d", "e", "nested"}

func userField(name string) schema.Field {
	switch name {
	case "a":
		return schema.FieldOf("a", schema.Primitive(schema.KindInt32),
			func(r *userRecord) int32 { return r.A },
			func(r *userRecord, v int32) { r.A = v })
	case "b":
		return schema.FieldOf("b", schema.Primitive(schema.KindString),
			func(r *userRecord) string { return r.B },
			func(r *userRecord, v string) { r.B = v })
	case "c":
		return schema.FieldOf("c", schema.Primitive(schema.KindFloat64),
			func(r *userRecord) float64 { return r.C },
			func(r *userRecord, v float64) { r.C = v })
	case "d":
		return schema.FieldOf("d", schema.Primitive(schema.KindInt32s),
			func(r *userRecord) []int32 { return r.D },
			func(r *userRecord, v []int32) { r.D = v })
	case "e":
		return schema.FieldOf("e", schema.Primitive(schema.KindTime),
			func(r *userRecord) time.Time { return r.E },
			func(r *userRecord, v time.Time) { r.E = v })
	case "nested":
		return schema.FieldOf("nested", schema.RecordRef("NestedRecord"),
			func(r *userRecord) *nestedRecord { return r.Nested },
			func(r *userRecord, v *nestedRecord) { r.Nested = v })
	}
	panic("unknown user field " + name)
}

func nestedType() schema.Type {
	return schema.Type{
		Name: "NestedRecord",
		New:  func() any { return &nestedRecord{} },
		Fields: []schema.Field{
			schema.FieldOf("id", schema.Primitive(schema.KindInt64),
				func(r *nestedRecord) int64 { return r.ID },
				func(r *nestedRecord, v int64) { r.ID = v }),
			schema.FieldOf("label", schema.Primitive(schema.KindString),
				func(r *nestedRecord) string { return r.Label },
				func(r *nestedRecord, v string) { r.Label = v }),
		},
	}
}

func userType(order ...string) schema.Type {
	if len(order) == 0 {
		order = defaultUserOrder
	}
	fields := make([]schema.Field, 0, len(order))
	for _, name := range order {
		fields = append(fields, userField(name))
	}
	return schema.Type{
		Name:   "UserRecord",
		New:    func() any { return &userRecord{} },
		Fields: fields,
	}
}

func subAType() schema.Type {
	return schema.Type{
		Name:  "SubA",
		Super: "UserRecord",
		New:   func() any { return &subA{} },
		Base:  func(rec any) any { return &rec.(*subA).userRecord },
		Fields: []schema.Field{
			schema.FieldOf("extra", schema.Primitive(schema.KindString),
				func(r *subA) string { return r.Extra },
				func(r *subA, v string) { r.Extra = v }),
		},
	}
}

func subBType() schema.Type {
	return schema.Type{
		Name:  "SubB",
		Super: "UserRecord",
		New:   func() any { return &subB{} },
		Base:  func(rec any) any { return &rec.(*subB).userRecord },
		Fields: []schema.Field{
			schema.FieldOf("weight", schema.Primitive(schema.KindFloat32),
				func(r *subB) float32 { return r.Weight },
				func(r *subB, v float32) { r.Weight = v }),
		},
	}
}

func subCType() schema.Type {
	return schema.Type{
		Name:  "SubC",
		Super: "UserRecord",
		New:   func() any { return &subC{} },
		Base:  func(rec any) any { return &rec.(*subC).userRecord },
		Fields: []schema.Field{
			schema.FieldOf("flag", schema.Primitive(schema.KindBool),
				func(r *subC) bool { return r.Flag },
				func(r *subC, v bool) { r.Flag = v }),
		},
	}
}

func listNodeType() schema.Type {
	return schema.Type{
		Name: "ListNode",
		New:  func() any { return &listNode{} },
		Fields: []schema.Field{
			schema.FieldOf("value", schema.Primitive(schema.KindInt32),
				func(r *listNode) int32 { return r.Value },
				func(r *listNode, v int32) { r.Value = v }),
			schema.FieldOf("next", schema.RecordRef("ListNode"),
				func(r *listNode) *listNode { return r.Next },
				func(r *listNode, v *listNode) { r.Next = v }),
		},
	}
}

// newTestRegistry registers the user record hierarchy with the user record's
// fields declared in the given order.
func newTestRegistry(order ...string) *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegister(nestedType(), userType(order...), subAType(), subBType(), subCType(), listNodeType())
	return reg
}

var testTime = time.Date(2024, time.May, 1, 12, 30, 15, 500, time.UTC)

func sampleUser() *userRecord {
	return &userRecord{
		A:      42,
		B:      "hello",
		C:      3.25,
		D:      []int32{7, -8, 9},
		E:      testTime,
		Nested: &nestedRecord{ID: 99, Label: "inner"},
	}
}

func sampleSubA() *subA {
	return &subA{userRecord: *sampleUser(), Extra: "extra"}
}

func sampleSubB() *subB {
	return &subB{userRecord: userRecord{A: 1, B: "b", E: testTime}, Weight: 1.5}
}

func fieldNames(ids []schema.FieldID) []string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	return names
}
