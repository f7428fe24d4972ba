package codec

import (
	"github.com/ssargent/statecodec/pkg/schema"
	"github.com/ssargent/statecodec/pkg/wire"
)

// Verdict is the outcome of resolving a codec against an older snapshot.
type Verdict int

const (
	// Compatible means the codec reads the old data as it is.
	Compatible Verdict = iota
	// CompatibleWithReconfigure means the codec reordered its tables to match
	// the old binary layout and can now read the old data.
	CompatibleWithReconfigure
	// RequiresMigration means the old data cannot be read by this codec.
	RequiresMigration
)

func (v Verdict) String() string {
	switch v {
	case Compatible:
		return "compatible"
	case CompatibleWithReconfigure:
		return "compatible_with_reconfigure"
	case RequiresMigration:
		return "requires_migration"
	default:
		return "unknown"
	}
}

// worse returns the more severe of two verdicts
func worse(a, b Verdict) Verdict {
	if b > a {
		return b
	}
	return a
}

// Codec encodes and decodes values of one declared type and describes its
// schema as a Snapshot.
//
// Codecs are not safe for concurrent use. Parallel consumers should each own
// an independently constructed codec.
type Codec interface {
	// Encode writes a non-nil value.
	Encode(w wire.Writer, v any) error
	// Decode reads one value.
	Decode(r wire.Reader) (any, error)
	// Copy returns a deep copy of a non-nil value.
	Copy(v any) (any, error)
	// CreateInstance returns the zero value of the declared type.
	CreateInstance() any
	// Snapshot describes the codec's current schema.
	Snapshot() Snapshot
	// Resolve reconciles the codec with the snapshot of an earlier codec,
	// reordering its internal tables when that keeps old data readable.
	// It only inspects nested snapshots, never their delegate references.
	Resolve(old Snapshot) Verdict
}

// Resolve reconciles c with a previously persisted snapshot.
func Resolve(c Codec, old Snapshot) Verdict {
	if c == nil || old == nil {
		return RequiresMigration
	}
	return c.Resolve(old)
}

// ForType builds the codec for a declared field type. Record types get a
// codec without subclass registrations.
func ForType(reg *schema.Registry, ref schema.TypeRef, opts ...Option) (Codec, error) {
	b := newBuilder(reg, nil, opts)
	return b.forType(ref)
}
