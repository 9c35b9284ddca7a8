// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"wordgames/internal/cache"
	"wordgames/internal/config"
	"wordgames/internal/database"
	"wordgames/internal/observability"
	"wordgames/internal/segment"
	"wordgames/internal/services"
	"wordgames/internal/store"
	contextutils "wordgames/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetGameService() (services.GameServiceInterface, error)
	GetSegmenter() (segment.Segmenter, error)
	GetStore() store.Store
	GetQuestionStore() store.QuestionStore
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	store         store.Store
	questions     store.QuestionStore
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize connects to the database, applies migrations and builds the services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.initializeStore(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return err
	}
	sc.initializeQuestionCache(ctx)
	sc.initializeServices(ctx)

	return nil
}

// initializeStore opens the database and wraps it in the Postgres store
func (sc *ServiceContainer) initializeStore(ctx context.Context) error {
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.Open(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.dbManager.RunMigrations(ctx, sc.cfg.Database); err != nil {
		return contextutils.WrapError(err, "failed to migrate database")
	}

	sc.store = store.NewPostgresStore(db, sc.logger)
	return nil
}

// initializeQuestionCache puts the Redis cache in front of the question banks.
// An unreachable Redis leaves questions uncached.
func (sc *ServiceContainer) initializeQuestionCache(ctx context.Context) {
	sc.questions = sc.store
	if !sc.cfg.Cache.Enabled {
		return
	}

	rdb, err := cache.NewRedisClient(ctx, sc.cfg.Cache)
	if err != nil {
		sc.logger.Warn(ctx, "Question cache disabled: redis unavailable", map[string]interface{}{
			"redis_addr": sc.cfg.Cache.RedisAddr,
			"error":      err.Error(),
		})
		return
	}
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return rdb.Close()
	})
	sc.questions = cache.NewQuestionCache(sc.store, rdb, sc.cfg.Cache, sc.logger)
}

// initializeServices builds the services on top of the store
func (sc *ServiceContainer) initializeServices(_ context.Context) {
	if sc.questions == nil {
		sc.questions = sc.store
	}

	sc.services["game"] = services.NewGameService(sc.store, sc.questions, sc.cfg, sc.logger)
	sc.services["segmenter"] = segment.New(sc.cfg.Segmenter, sc.logger)
}

// GetService retrieves a service by name
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetGameService returns the game service
func (sc *ServiceContainer) GetGameService() (services.GameServiceInterface, error) {
	return GetServiceAs[services.GameServiceInterface](sc, "game")
}

// GetSegmenter returns the word segmenter
func (sc *ServiceContainer) GetSegmenter() (segment.Segmenter, error) {
	return GetServiceAs[segment.Segmenter](sc, "segmenter")
}

// GetStore returns the persistent store
func (sc *ServiceContainer) GetStore() store.Store {
	return sc.store
}

// GetQuestionStore returns the question store, cached when Redis is configured
func (sc *ServiceContainer) GetQuestionStore() store.QuestionStore {
	return sc.questions
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown releases every resource the container opened
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup runs shutdown functions in reverse order of registration
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err, nil)
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if err := errors.Join(errs...); err != nil {
		return contextutils.WrapError(err, "shutdown errors")
	}
	return nil
}
