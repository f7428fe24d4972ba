package checkpoint

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/statecodec/pkg/codec"
	"github.com/ssargent/statecodec/pkg/frame"
)

// Config holds configuration for the checkpoint store
type Config struct {
	DataDir  string   // Directory for the pebble database
	InMemory bool     // Keep everything in memory (tests, dry runs)
	Sync     bool     // fsync every commit
	Metrics  *Metrics // Optional; nil disables metrics
}

// Info describes one stored checkpoint
type Info struct {
	ID            ksuid.KSUID `json:"id"`
	Name          string      `json:"name"`
	Created       time.Time   `json:"created"`
	Type          string      `json:"type"`
	Registrations []string    `json:"registrations,omitempty"`
	Records       int         `json:"records"`
}

// RestoreResult is the outcome of restoring a checkpoint into a codec
type RestoreResult struct {
	Info     Info
	Verdict  codec.Verdict
	Snapshot codec.Snapshot
	// Records is nil when the verdict is RequiresMigration.
	Records []any
}

// Errors
var (
	ErrNotFound     = &CheckpointError{"checkpoint not found"}
	ErrInvalidName  = &CheckpointError{"invalid checkpoint name"}
	ErrCorruptMeta  = &CheckpointError{"corrupt checkpoint metadata"}
	ErrStoreClosed  = &CheckpointError{"checkpoint store is closed"}
	ErrTooManyState = &CheckpointError{"too many records in one checkpoint"}
)

// ErrCorruptFrame is returned when a stored value fails its integrity check.
var ErrCorruptFrame = frame.ErrCorruptFrame

// CheckpointError represents a checkpoint store error
type CheckpointError struct {
	Message string
}

func (e *CheckpointError) Error() string {
	return e.Message
}
