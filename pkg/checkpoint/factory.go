package checkpoint

import "go.uber.org/zap"

// StoreFactory opens checkpoint stores
type StoreFactory interface {
	OpenStore(cfg Config, logger *zap.Logger) (*Store, error)
}

// DefaultStoreFactory opens pebble-backed stores with Open
type DefaultStoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() StoreFactory {
	return &DefaultStoreFactory{}
}

// OpenStore opens a checkpoint store
func (f *DefaultStoreFactory) OpenStore(cfg Config, logger *zap.Logger) (*Store, error) {
	return Open(cfg, logger)
}
