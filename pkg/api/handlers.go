package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/statecodec/pkg/checkpoint"
	"github.com/ssargent/statecodec/pkg/codec"
)

// Server holds the API server state
type Server struct {
	store   CheckpointStore
	config  ServerConfig
	metrics *Metrics
	logger  *zap.Logger
}

// NewServer creates a new API server. metrics and logger may be nil.
func NewServer(store CheckpointStore, config ServerConfig, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		s.sendStoreError(w, "list", err)
		return
	}
	if infos == nil {
		infos = []checkpoint.Info{}
	}
	sendSuccess(w, infos)
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	info, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, "get", err)
		return
	}
	sendSuccess(w, info)
}

// handleGetSnapshot renders a stored snapshot. The server has no record
// types registered, so delegate references are never rebuilt; the snapshot
// itself is complete without them. ?format=text returns the plain
// description.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	info, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, "get", err)
		return
	}
	snap, err := s.store.LoadSnapshot(r.Context(), id, codec.NopLoader)
	if err != nil {
		s.sendStoreError(w, "load snapshot", err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(codec.Describe(snap)))
		return
	}
	sendSuccess(w, SnapshotResponse{
		Info:     info,
		Snapshot: viewOf(snap),
		Describe: codec.Describe(snap),
	})
}

func (s *Server) handleDeleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.sendStoreError(w, "delete", err)
		return
	}
	sendSuccess(w, map[string]string{"status": "deleted", "id": id.String()})
}

func parseID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid checkpoint id", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func (s *Server) sendStoreError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		sendError(w, "Checkpoint not found", http.StatusNotFound)
	case errors.Is(err, checkpoint.ErrStoreClosed):
		sendError(w, "Checkpoint store is closed", http.StatusServiceUnavailable)
	default:
		s.logger.Error("checkpoint store operation failed",
			zap.String("operation", operation), zap.Error(err))
		sendError(w, "Failed to "+operation+" checkpoint", http.StatusInternalServerError)
	}
}
