package api

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/statecodec/pkg/checkpoint"
	"github.com/ssargent/statecodec/pkg/codec"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind        string
	Port        int
	APIKey      string
	CORSOrigins []string
}

// CheckpointStore is the part of the checkpoint store the admin API reads
type CheckpointStore interface {
	List(ctx context.Context) ([]checkpoint.Info, error)
	Get(ctx context.Context, id ksuid.KSUID) (checkpoint.Info, error)
	LoadSnapshot(ctx context.Context, id ksuid.KSUID, loader codec.CodecLoader) (codec.Snapshot, error)
	Delete(ctx context.Context, id ksuid.KSUID) error
}

// SnapshotResponse is the JSON rendering of a stored snapshot
type SnapshotResponse struct {
	Info     checkpoint.Info `json:"info"`
	Snapshot SnapshotView    `json:"snapshot"`
	Describe string          `json:"describe"`
}

// SnapshotView is a JSON-friendly copy of a codec snapshot. Delegate
// references are never rendered.
type SnapshotView struct {
	Kind       string         `json:"kind"`
	Type       string         `json:"type,omitempty"`
	Fields     []FieldView    `json:"fields,omitempty"`
	Registered []SubclassView `json:"registered,omitempty"`
	Cached     []SubclassView `json:"cached,omitempty"`
}

// FieldView is one field table entry
type FieldView struct {
	Owner    string       `json:"owner"`
	Name     string       `json:"name"`
	Snapshot SnapshotView `json:"snapshot"`
}

// SubclassView is one subclass tier entry
type SubclassView struct {
	Type     string       `json:"type"`
	Tag      *int         `json:"tag,omitempty"`
	Snapshot SnapshotView `json:"snapshot"`
}

func viewOf(s codec.Snapshot) SnapshotView {
	switch s := s.(type) {
	case *codec.PrimitiveSnapshot:
		return SnapshotView{Kind: s.Type.String()}
	case *codec.RecursiveSnapshot:
		return SnapshotView{Kind: "recursive", Type: s.Type}
	case *codec.RecordSnapshot:
		v := SnapshotView{Kind: "record", Type: s.Type}
		for _, f := range s.Fields {
			v.Fields = append(v.Fields, FieldView{Owner: f.ID.Owner, Name: f.ID.Name, Snapshot: viewOf(f.Snapshot)})
		}
		for _, r := range s.Registered {
			tag := r.Tag
			v.Registered = append(v.Registered, SubclassView{Type: r.Type, Tag: &tag, Snapshot: viewOf(r.Snapshot)})
		}
		for _, c := range s.Cached {
			v.Cached = append(v.Cached, SubclassView{Type: c.Type, Snapshot: viewOf(c.Snapshot)})
		}
		return v
	}
	return SnapshotView{Kind: "unknown"}
}
