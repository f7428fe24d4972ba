package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/codec"
	"github.com/ssargent/statecodec/pkg/frame"
)

// Store persists codec snapshots together with the records they encoded. It
// is safe for concurrent use; the codecs passed to it are not.
type Store struct {
	db      *pebble.DB
	frames  *frame.Codec
	logger  *zap.Logger
	metrics *Metrics
	write   *pebble.WriteOptions
	closed  atomic.Bool
}

// Open opens or creates a checkpoint store
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := &pebble.Options{}
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
	} else if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	db, err := pebble.Open(cfg.DataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	write := pebble.NoSync
	if cfg.Sync {
		write = pebble.Sync
	}

	logger.Debug("opened checkpoint store",
		zap.String("dir", cfg.DataDir),
		zap.Bool("in_memory", cfg.InMemory))

	return &Store{
		db:      db,
		frames:  frame.NewCodec(),
		logger:  logger,
		metrics: cfg.Metrics,
		write:   write,
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) checkOpen(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return ctx.Err()
}

// Save encodes records with c and stores them together with the snapshot c
// has afterwards, so subclasses first seen while encoding are described. All
// keys of a checkpoint are written in one batch.
func (s *Store) Save(ctx context.Context, name string, c *codec.RecordCodec, records []any) (id ksuid.KSUID, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordSave(err == nil, len(records), time.Since(start))
	}()

	if err := s.checkOpen(ctx); err != nil {
		return ksuid.Nil, err
	}
	if strings.TrimSpace(name) == "" {
		return ksuid.Nil, ErrInvalidName
	}
	if len(records) > maxStateSeq {
		return ksuid.Nil, ErrTooManyState
	}

	id = ksuid.New()
	batch := s.db.NewBatch()
	defer batch.Close()

	for seq, rec := range records {
		if seq%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return ksuid.Nil, err
			}
		}
		data, err := c.Marshal(rec)
		if err != nil {
			return ksuid.Nil, fmt.Errorf("failed to encode record %d: %w", seq, err)
		}
		if err := s.setFrame(batch, stateKey(id, seq), frame.KindState, data); err != nil {
			return ksuid.Nil, err
		}
	}

	snap, err := codec.MarshalSnapshot(c.Snapshot())
	if err != nil {
		return ksuid.Nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	if err := s.setFrame(batch, snapshotKey(id), frame.KindSnapshot, snap); err != nil {
		return ksuid.Nil, err
	}

	info := Info{
		ID:            id,
		Name:          name,
		Created:       id.Time().UTC(),
		Type:          c.Type(),
		Registrations: c.Registrations(),
		Records:       len(records),
	}
	if err := s.setFrame(batch, metaKey(id), frame.KindMeta, encodeMeta(info)); err != nil {
		return ksuid.Nil, err
	}

	if err := batch.Commit(s.write); err != nil {
		return ksuid.Nil, fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	s.logger.Info("saved checkpoint",
		zap.Stringer("id", id),
		zap.String("name", name),
		zap.String("type", info.Type),
		zap.Int("records", len(records)))
	return id, nil
}

func (s *Store) setFrame(batch *pebble.Batch, key []byte, kind frame.Kind, payload []byte) error {
	data, err := s.frames.Encode(kind, payload)
	if err != nil {
		return err
	}
	if err := batch.Set(key, data, nil); err != nil {
		return fmt.Errorf("failed to stage %s frame: %w", kind, err)
	}
	return nil
}

// readFrame returns a copy of the payload stored under key.
func (s *Store) readFrame(key []byte, kind frame.Kind) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	payload, err := s.frames.DecodeKind(data, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return append([]byte(nil), payload...), nil
}

// Get returns the metadata of one checkpoint
func (s *Store) Get(ctx context.Context, id ksuid.KSUID) (Info, error) {
	if err := s.checkOpen(ctx); err != nil {
		return Info{}, err
	}
	payload, err := s.readFrame(metaKey(id), frame.KindMeta)
	if err != nil {
		return Info{}, err
	}
	info, err := decodeMeta(payload)
	if err != nil {
		return Info{}, err
	}
	info.ID = id
	return info, nil
}

// List returns every checkpoint, oldest first
func (s *Store) List(ctx context.Context) ([]Info, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperation("list", time.Since(start)) }()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: prefixEnd([]byte(keyPrefix)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var infos []Info
	for iter.First(); iter.Valid(); iter.Next() {
		id, ok := idFromMetaKey(iter.Key())
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := s.frames.DecodeKind(iter.Value(), frame.KindMeta)
		if err != nil {
			s.logger.Warn("skipping checkpoint with unreadable metadata",
				zap.Stringer("id", id), zap.Error(err))
			continue
		}
		info, err := decodeMeta(payload)
		if err != nil {
			s.logger.Warn("skipping checkpoint with unreadable metadata",
				zap.Stringer("id", id), zap.Error(err))
			continue
		}
		info.ID = id
		infos = append(infos, info)
	}
	return infos, iter.Error()
}

// LoadSnapshot reads the snapshot of a checkpoint. Delegate references the
// loader cannot rebuild are dropped, see codec.SnapshotReader.
func (s *Store) LoadSnapshot(ctx context.Context, id ksuid.KSUID, loader codec.CodecLoader) (codec.Snapshot, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	payload, err := s.readFrame(snapshotKey(id), frame.KindSnapshot)
	if err != nil {
		return nil, err
	}
	snap, err := codec.UnmarshalSnapshot(payload, codec.SnapshotReader{Loader: loader, Logger: s.logger})
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", id, err)
	}
	return snap, nil
}

// Delete removes a checkpoint and all of its state
func (s *Store) Delete(ctx context.Context, id ksuid.KSUID) error {
	start := time.Now()
	defer func() { s.metrics.RecordOperation("delete", time.Since(start)) }()

	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	_, closer, err := s.db.Get(metaKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	closer.Close()

	prefix := checkpointPrefix(id)
	if err := s.db.DeleteRange(prefix, prefixEnd(prefix), s.write); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	s.logger.Info("deleted checkpoint", zap.Stringer("id", id))
	return nil
}

// Restore resolves c against the checkpoint's snapshot and, unless the
// verdict is RequiresMigration, decodes the stored records with the
// reconfigured codec. RequiresMigration is reported in the result, not as an
// error.
func (s *Store) Restore(ctx context.Context, id ksuid.KSUID, c *codec.RecordCodec) (*RestoreResult, error) {
	start := time.Now()
	result, err := s.restore(ctx, id, c)
	if err != nil {
		s.metrics.RecordRestoreError(time.Since(start))
		return nil, err
	}
	s.metrics.RecordRestore(result.Verdict, time.Since(start))
	return result, nil
}

func (s *Store) restore(ctx context.Context, id ksuid.KSUID, c *codec.RecordCodec) (*RestoreResult, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.LoadSnapshot(ctx, id, codec.RegistryLoader{Registry: c.Registry(), Logger: s.logger})
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Info: info, Snapshot: snap, Verdict: c.Resolve(snap)}
	log := s.logger.With(
		zap.Stringer("id", id),
		zap.String("type", c.Type()),
		zap.Stringer("verdict", result.Verdict))

	if result.Verdict == codec.RequiresMigration {
		log.Warn("checkpoint requires migration; state not restored")
		return result, nil
	}

	records, err := s.readState(ctx, id, c, info.Records)
	if err != nil {
		return nil, err
	}
	result.Records = records
	log.Info("restored checkpoint", zap.Int("records", len(records)))
	return result, nil
}

// Verify checks the integrity of every frame of a checkpoint without
// decoding records, which needs no schema. It returns the number of state
// frames found.
func (s *Store) Verify(ctx context.Context, id ksuid.KSUID) (int, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperation("verify", time.Since(start)) }()

	info, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if _, err := s.LoadSnapshot(ctx, id, codec.NopLoader); err != nil {
		return 0, err
	}

	prefix := statePrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, err := s.frames.DecodeKind(iter.Value(), frame.KindState); err != nil {
			return count, fmt.Errorf("%s: %w", iter.Key(), err)
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return count, err
	}
	if count != info.Records {
		return count, fmt.Errorf("%w: found %d records, metadata lists %d", ErrCorruptFrame, count, info.Records)
	}
	return count, nil
}

const maxRestorePrealloc = 4096

func (s *Store) readState(ctx context.Context, id ksuid.KSUID, c *codec.RecordCodec, expected int) ([]any, error) {
	prefix := statePrefix(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	// the count comes from metadata and is only checked after the scan
	records := make([]any, 0, min(expected, maxRestorePrealloc))
	for iter.First(); iter.Valid(); iter.Next() {
		if len(records)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		payload, err := s.frames.DecodeKind(iter.Value(), frame.KindState)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Key(), err)
		}
		rec, err := c.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if len(records) != expected {
		return nil, fmt.Errorf("%w: found %d records, metadata lists %d", ErrCorruptFrame, len(records), expected)
	}
	return records, nil
}
