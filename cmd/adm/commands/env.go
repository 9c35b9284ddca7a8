// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"sync"

	"wordgames/internal/config"
	"wordgames/internal/di"
	"wordgames/internal/observability"
)

// Env holds what every command needs. The service container is built on
// first use so commands that only touch migrations never open a pool.
type Env struct {
	Config *config.Config
	Logger *observability.Logger

	once      sync.Once
	container *di.ServiceContainer
	initErr   error
}

// NewEnv creates a command environment
func NewEnv(cfg *config.Config, logger *observability.Logger) *Env {
	return &Env{Config: cfg, Logger: logger}
}

// Container returns the initialized service container
func (e *Env) Container(ctx context.Context) (di.ServiceContainerInterface, error) {
	e.once.Do(func() {
		e.container = di.NewServiceContainer(e.Config, e.Logger)
		e.initErr = e.container.Initialize(ctx)
	})
	if e.initErr != nil {
		return nil, e.initErr
	}
	return e.container, nil
}

// Close releases the container if one was built
func (e *Env) Close(ctx context.Context) error {
	if e.container == nil || e.initErr != nil {
		return nil
	}
	return e.container.Shutdown(ctx)
}
