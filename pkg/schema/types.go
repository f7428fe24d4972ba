package schema

import (
	"fmt"
	"reflect"
)

// Kind is the shape of a field's declared type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindInt32s // []int32
	KindTime   // time.Time, read back in UTC
	KindRecord
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBytes:   "bytes",
	KindInt32s:  "int32s",
	KindTime:    "time",
	KindRecord:  "record",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && k != KindInvalid {
			return k, true
		}
	}
	return KindInvalid, false
}

// TypeRef is the declared type of a field: either a primitive kind or a
// reference to another registered record type.
type TypeRef struct {
	Kind   Kind
	Record string // set only when Kind == KindRecord
}

// Primitive returns a reference to a primitive kind
func Primitive(k Kind) TypeRef { return TypeRef{Kind: k} }

// RecordRef returns a reference to the named record type
func RecordRef(name string) TypeRef { return TypeRef{Kind: KindRecord, Record: name} }

func (r TypeRef) String() string {
	if r.Kind == KindRecord {
		return "record(" + r.Record + ")"
	}
	return r.Kind.String()
}

// FieldID identifies a field by its declaring type and name.
type FieldID struct {
	Owner string
	Name  string
}

func (f FieldID) String() string { return f.Owner + "." + f.Name }

// Field describes one declared data member of a record type. Get returns nil
// for a null value; Set with a nil value stores the zero value. Set fails
// with ErrFieldValue when v is not assignable to the member.
type Field struct {
	ID   FieldID
	Type TypeRef
	Get  func(rec any) any
	Set  func(rec any, v any) error
}

// Type describes a record type.
//
// Fields lists only the members the type declares itself; inherited members
// come from Super. New returns a pointer to a fresh zero record and Base
// projects a record of this type onto its embedded Super value, which must
// also be a pointer.
type Type struct {
	Name   string
	Super  string
	Fields []Field
	New    func() any
	Base   func(rec any) any
}

// FieldOf builds a typed Field for records of type *R holding values of type V.
// Nil pointers, slices and maps are reported as null.
func FieldOf[R any, V any](name string, ref TypeRef, get func(*R) V, set func(*R, V)) Field {
	return Field{
		ID:   FieldID{Name: name},
		Type: ref,
		Get: func(rec any) any {
			v := get(rec.(*R))
			if IsNil(v) {
				return nil
			}
			return v
		},
		Set: func(rec any, v any) error {
			if v == nil {
				var zero V
				set(rec.(*R), zero)
				return nil
			}
			typed, ok := v.(V)
			if !ok {
				want := reflect.TypeOf((*V)(nil)).Elem()
				return fmt.Errorf("%w: %s cannot hold %T, want %s", ErrFieldValue, name, v, want)
			}
			set(rec.(*R), typed)
			return nil
		},
	}
}

// IsNil reports whether v is nil or a nil pointer, slice, map, interface,
// func or channel.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
