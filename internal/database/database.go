// Package database opens the instrumented Postgres connection and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"wordgames/internal/config"
	"wordgames/internal/observability"
	contextutils "wordgames/internal/utils"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // required for golang-migrate file source

	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// defaultDatabaseName is reported when the URL carries no database name
const defaultDatabaseName = "wordgames"

// Manager handles database connections and migrations with logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverName string
	otelDriverOnce sync.Once
	otelDriverErr  error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		logger: logger,
	}
}

// extractDatabaseName extracts the database name from a PostgreSQL connection URL
func extractDatabaseName(databaseURL string) string {
	if u, err := url.Parse(databaseURL); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			return name
		}
		if name := u.Query().Get("dbname"); name != "" {
			return name
		}
	}

	// key=value DSN
	for _, field := range strings.Fields(databaseURL) {
		if name, ok := strings.CutPrefix(field, "dbname="); ok && name != "" {
			return name
		}
	}

	return defaultDatabaseName
}

// Open connects to the database through the otelsql-instrumented driver
func (dm *Manager) Open(ctx context.Context, cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	dbName := extractDatabaseName(cfg.URL)
	ctx, span := observability.TraceDatabaseFunction(ctx, "open",
		attribute.String("db.name", dbName),
		attribute.String("db.system", "postgresql"),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
	)
	defer observability.FinishSpan(span, &err)

	if cfg.URL == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "database url is required")
	}

	// The instrumented driver can only be registered once per process
	otelDriverOnce.Do(func() {
		otelDriverName, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(dbName),
			otelsql.TraceQueryWithoutArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverName, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to open database connection: %v", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr, nil)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to ping database: %v", err)
	}

	if err := otelsql.RecordStats(db, otelsql.WithSystem(semconv.DBSystemPostgreSQL), otelsql.WithInstanceName(dbName)); err != nil {
		dm.logger.Warn(ctx, "Failed to record database pool stats", map[string]interface{}{"error": err.Error()})
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"db_name":           dbName,
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

// newMigrate prepares a golang-migrate instance for the configured database
func (dm *Manager) newMigrate(cfg config.DatabaseConfig) (*migrate.Migrate, string, error) {
	migrationsPath, err := GetMigrationsPath(cfg)
	if err != nil {
		return nil, "", err
	}
	if cfg.URL == "" {
		return nil, "", contextutils.WrapError(contextutils.ErrMissingRequired, "database url is required for migrations")
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), cfg.URL)
	if err != nil {
		return nil, "", contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to initialize golang-migrate: %v", err)
	}
	return m, migrationsPath, nil
}

func (dm *Manager) closeMigrate(ctx context.Context, m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		dm.logger.Error(ctx, "Error closing migration", err, nil)
	}
}

// RunMigrations applies every pending up migration
func (dm *Manager) RunMigrations(ctx context.Context, cfg config.DatabaseConfig) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "run_migrations",
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	m, path, err := dm.newMigrate(cfg)
	if err != nil {
		return err
	}
	defer dm.closeMigrate(ctx, m)
	span.SetAttributes(attribute.String("migration.path", path))

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(ctx, "No new migrations to apply", map[string]interface{}{"migrations_path": path})
		return nil
	}
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "migration up failed: %v", err)
	}

	version, dirty, verErr := m.Version()
	if verErr == nil {
		span.SetAttributes(attribute.Int("migration.version", int(version)))
	}
	dm.logger.Info(ctx, "Migrations applied", map[string]interface{}{
		"migrations_path": path,
		"version":         version,
		"dirty":           dirty,
	})
	return nil
}

// RollbackMigrations reverts the given number of migrations
func (dm *Manager) RollbackMigrations(ctx context.Context, cfg config.DatabaseConfig, steps int) (err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "rollback_migrations",
		attribute.String("db.system", "postgresql"),
		attribute.Int("migration.steps", steps),
	)
	defer observability.FinishSpan(span, &err)

	if steps <= 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "rollback steps must be positive, got %d", steps)
	}

	m, path, err := dm.newMigrate(cfg)
	if err != nil {
		return err
	}
	defer dm.closeMigrate(ctx, m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "migration rollback failed: %v", err)
	}

	dm.logger.Info(ctx, "Migrations rolled back", map[string]interface{}{
		"migrations_path": path,
		"steps":           steps,
	})
	return nil
}

// GetMigrationsPath returns the configured migrations directory, or the first
// "migrations" directory found walking up from the working directory.
func GetMigrationsPath(cfg config.DatabaseConfig) (string, error) {
	if cfg.MigrationsPath != "" {
		abs, err := filepath.Abs(cfg.MigrationsPath)
		if err != nil {
			return "", contextutils.WrapError(err, "failed to resolve migrations path")
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return "", contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "migrations directory %s not found", abs)
		}
		return abs, nil
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return "", contextutils.WrapError(err, "failed to get working directory")
	}

	for {
		candidate := filepath.Join(currentDir, "migrations")
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", contextutils.WrapError(contextutils.ErrRecordNotFound, "migrations directory not found in any parent directory")
		}
		currentDir = parentDir
	}
}
