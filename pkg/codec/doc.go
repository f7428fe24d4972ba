// Package codec serializes user-defined record types and keeps data written by
// an older version of a record's schema readable.
//
// A RecordCodec is built from type descriptors in a schema.Registry. It holds
// a field table, which fixes the order fields appear on the wire, and a two
// tier subclass registry for values whose runtime type is a subtype of the
// declared one.
//
// # Record Format
//
//	Record       := Marker Body
//	Marker       := 0x00 null | 0x01 no subclass | 0x02 registered | 0x03 cached
//	Body(0x01)   := FieldCount(uvarint) { Present(bool) Value? }
//	Body(0x02)   := Tag(uvarint) SubclassRecord
//	Body(0x03)   := TypeName(string) SubclassRecord
//
// Registered subclasses are written with the tag assigned from their position
// in the registration list. Any other subtype is written with its type name
// and gets a codec in the cache tier the first time it is seen.
//
// FieldCount lets a codec whose table gained trailing fields read payloads
// written before those fields existed. The missing fields keep their zero
// value.
//
// # Snapshots and Resolution
//
// Snapshot describes a codec's current tables. It is persisted next to the
// data with WriteSnapshot. At restore time a codec is built from the current
// type definitions and resolved against the snapshot read back with
// ReadSnapshot:
//
//	old, err := codec.ReadSnapshot(in, codec.RegistryLoader{Registry: reg})
//	if err != nil {
//		return err
//	}
//	switch c.Resolve(old) {
//	case codec.Compatible, codec.CompatibleWithReconfigure:
//		// decode old state with c
//	case codec.RequiresMigration:
//		// rebuild state
//	}
//
// Resolution reorders the field table to the old order, restores old subclass
// tags and refills the cache tier, so the codec reads old bytes. It works on
// nested snapshots only. Delegate references inside a snapshot are optional;
// one that cannot be rebuilt from its bytes is logged and dropped while the
// rest of the snapshot is read normally.
//
// # Concurrency
//
// Codecs are not safe for concurrent use. Decoding an unseen subtype updates
// the cache tier. Use Duplicate to give each goroutine its own codec.
package codec
