// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/statecodec/pkg/api"
	"github.com/ssargent/statecodec/pkg/checkpoint"
)

// Container holds all the dependencies for the application
type Container struct {
	storeFactory  checkpoint.StoreFactory
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		storeFactory:  checkpoint.NewStoreFactory(),
		serverFactory: api.NewServerFactory(),
	}
}

// GetStoreFactory returns the checkpoint store factory
func (c *Container) GetStoreFactory() checkpoint.StoreFactory {
	return c.storeFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetStoreFactory allows overriding the store factory (for testing)
func (c *Container) SetStoreFactory(factory checkpoint.StoreFactory) {
	c.storeFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
