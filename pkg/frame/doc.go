// Package frame wraps stored blobs in a checksummed envelope.
//
// Every value the checkpoint store writes to disk (metadata, snapshots and
// encoded records) is a frame:
//
//	[CRC32(4)][Kind(1)][PayloadSize(4)][Timestamp(8)][Payload]
//
// All integers are little-endian. The CRC32 (IEEE) covers every byte after the
// CRC field. Decode rejects frames whose length disagrees with PayloadSize or
// whose checksum does not match, so a torn or bit-flipped value surfaces as
// ErrCorruptFrame instead of being handed to the record codec.
package frame
