package checkpoint

import (
	"fmt"
	"time"

	"github.com/ssargent/statecodec/pkg/wire"
)

const metaVersion = 1

func encodeMeta(info Info) []byte {
	out := wire.NewOutput(64)
	out.PutUvarint(metaVersion)
	out.PutString(info.Name)
	out.PutVarint(info.Created.UnixNano())
	out.PutString(info.Type)
	out.PutUvarint(uint64(len(info.Registrations)))
	for _, r := range info.Registrations {
		out.PutString(r)
	}
	out.PutUvarint(uint64(info.Records))
	return out.Bytes()
}

func decodeMeta(data []byte) (Info, error) {
	var info Info
	in := wire.NewInput(data)

	version, err := in.Uvarint()
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	if version != metaVersion {
		return info, fmt.Errorf("%w: unsupported version %d", ErrCorruptMeta, version)
	}
	if info.Name, err = in.String(); err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	created, err := in.Varint()
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	info.Created = time.Unix(0, created).UTC()
	if info.Type, err = in.String(); err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	n, err := in.Uvarint()
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	if n > uint64(in.Remaining()) {
		return info, fmt.Errorf("%w: %d registrations exceed input", ErrCorruptMeta, n)
	}
	for i := uint64(0); i < n; i++ {
		r, err := in.String()
		if err != nil {
			return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
		}
		info.Registrations = append(info.Registrations, r)
	}
	records, err := in.Uvarint()
	if err != nil {
		return info, fmt.Errorf("%w: %w", ErrCorruptMeta, err)
	}
	if records > maxStateSeq {
		return info, fmt.Errorf("%w: record count %d out of range", ErrCorruptMeta, records)
	}
	info.Records = int(records)
	return info, nil
}
