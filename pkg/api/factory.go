package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// ServerStarter starts the admin API server
type ServerStarter interface {
	StartServer(ctx context.Context, store CheckpointStore, config ServerConfig, logger *zap.Logger, reg *prometheus.Registry) error
}

// ServerFactory creates server starters
type ServerFactory interface {
	CreateServerStarter() ServerStarter
}

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter runs StartServer
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, store CheckpointStore, config ServerConfig, logger *zap.Logger, reg *prometheus.Registry) error {
	return StartServer(ctx, store, config, logger, reg)
}
