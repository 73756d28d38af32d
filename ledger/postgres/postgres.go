package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/LerianStudio/lib-ledger/ledger/log"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"

	// File-source migrations; imported for its side effect so
	// migrate.NewWithDatabaseInstance can resolve file:// URLs.
	_ "github.com/golang-migrate/migrate/v4/source/file"

	// Registers the pgx driver under the "pgx" database/sql name.
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultDatabaseName    = "ledger"
)

// Package-level seams so unit tests can exercise the connect path without a
// live server.
var (
	dbOpenFn = sql.Open

	createResolverFn = func(primary, replica *sql.DB) (_ dbresolver.DB, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("create resolver: %v", recovered)
			}
		}()

		resolver := dbresolver.New(
			dbresolver.WithPrimaryDBs(primary),
			dbresolver.WithReplicaDBs(replica),
			dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
		)

		if resolver == nil {
			return nil, errors.New("resolver returned nil connection")
		}

		return resolver, nil
	}

	runMigrationsFn = runMigrations

	dsnCredentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	dsnPasswordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
	dbNamePattern         = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Config carries the connection settings. PrimaryDSN and ReplicaDSN are
// required; single-node deployments pass the same DSN for both.
type Config struct {
	PrimaryDSN     string
	ReplicaDSN     string
	DatabaseName   string
	MigrationsPath string
	Logger         log.Logger
	MaxOpenConns   int
	MaxIdleConns   int
}

// Connection is the postgres hub: it owns the primary and replica pools, the
// read/write resolver, and schema migrations. Safe for concurrent use.
type Connection struct {
	cfg Config

	mu        sync.RWMutex
	primary   *sql.DB
	resolver  dbresolver.DB
	connected bool
}

// New validates cfg and returns an unconnected hub. Call Connect, or let the
// first DB call connect lazily.
func New(cfg Config) (*Connection, error) {
	if cfg.PrimaryDSN == "" {
		return nil, errors.New("postgres: PrimaryDSN is required")
	}

	if cfg.ReplicaDSN == "" {
		return nil, errors.New("postgres: ReplicaDSN is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	if cfg.DatabaseName == "" {
		cfg.DatabaseName = defaultDatabaseName
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}

	return &Connection{cfg: cfg}, nil
}

// Connect opens both pools, runs pending migrations on the primary and
// verifies connectivity. On reconnect the new pools are swapped in only
// after they prove healthy; until then the previous ones keep serving.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context done before connect: %w", err)
	}

	c.cfg.Logger.Log(ctx, log.LevelInfo, "connecting to primary and replica databases")

	primary, err := dbOpenFn("pgx", c.cfg.PrimaryDSN)
	if err != nil {
		sanitized := sanitizeSensitiveError(err)
		c.cfg.Logger.Log(ctx, log.LevelError, "opening primary database failed", log.String("error", sanitized))

		return fmt.Errorf("open primary database: %s", sanitized)
	}

	// Pools opened so far are torn down on any downstream failure.
	var success bool

	defer func() {
		if !success {
			_ = primary.Close()
		}
	}()

	c.configurePool(primary)

	replica, err := dbOpenFn("pgx", c.cfg.ReplicaDSN)
	if err != nil {
		sanitized := sanitizeSensitiveError(err)
		c.cfg.Logger.Log(ctx, log.LevelError, "opening replica database failed", log.String("error", sanitized))

		return fmt.Errorf("open replica database: %s", sanitized)
	}

	defer func() {
		if !success {
			_ = replica.Close()
		}
	}()

	c.configurePool(replica)

	resolver, err := createResolverFn(primary, replica)
	if err != nil {
		c.cfg.Logger.Log(ctx, log.LevelError, "creating resolver failed", log.Err(err))

		return fmt.Errorf("create resolver: %w", err)
	}

	if err := runMigrationsFn(ctx, primary, c.cfg.MigrationsPath, c.cfg.DatabaseName, c.cfg.Logger); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context done before ping: %w", err)
	}

	if err := resolver.PingContext(ctx); err != nil {
		c.cfg.Logger.Log(ctx, log.LevelError, "pinging database failed", log.Err(err))

		return fmt.Errorf("ping database: %w", err)
	}

	// Swap only once the new resolver is proven; a failed reconnect keeps
	// the previous connection serving.
	previous := c.resolver

	c.primary = primary
	c.resolver = resolver
	c.connected = true

	if previous != nil {
		if err := previous.Close(); err != nil {
			c.cfg.Logger.Log(ctx, log.LevelWarn, "closing previous connection failed", log.Err(err))
		}
	}

	c.cfg.Logger.Log(ctx, log.LevelInfo, "connected to postgres")

	success = true

	return nil
}

func (c *Connection) configurePool(db *sql.DB) {
	db.SetMaxOpenConns(c.cfg.MaxOpenConns)
	db.SetMaxIdleConns(c.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

// DB returns the read/write resolver, connecting on first use.
//
//nolint:ireturn
func (c *Connection) DB(ctx context.Context) (dbresolver.DB, error) {
	c.mu.RLock()

	if c.resolver != nil {
		resolver := c.resolver
		c.mu.RUnlock()

		return resolver, nil
	}

	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring the write lock.
	if c.resolver != nil {
		return c.resolver, nil
	}

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	return c.resolver, nil
}

// Primary returns the raw primary pool, connecting on first use. Intended
// for administrative statements that must not hit a replica.
func (c *Connection) Primary(ctx context.Context) (*sql.DB, error) {
	if _, err := c.DB(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.primary, nil
}

// Close releases both pools.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Connection) closeLocked() error {
	if c.resolver == nil {
		return nil
	}

	err := c.resolver.Close()
	c.resolver = nil
	c.primary = nil
	c.connected = false

	return err
}

// IsConnected reports whether the resolver is initialized.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

func sanitizeSensitiveError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := dsnCredentialsPattern.ReplaceAllString(err.Error(), "://***@")
	sanitized = dsnPasswordPattern.ReplaceAllString(sanitized, "${1}***")

	return sanitized
}

// sanitizeMigrationsPath rejects parent traversal and resolves the path.
func sanitizeMigrationsPath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("invalid migrations path: %q", path)
		}
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path: %w", err)
	}

	return abs, nil
}

func validateDatabaseName(name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("invalid database name: %q", name)
	}

	return nil
}

// runMigrations applies pending file-source migrations against the primary.
// An empty migrationsPath skips the step so callers can manage schema
// themselves.
func runMigrations(ctx context.Context, primary *sql.DB, migrationsPath, databaseName string, logger log.Logger) error {
	if migrationsPath == "" {
		logger.Log(ctx, log.LevelWarn, "no migrations path configured, skipping migrations")

		return nil
	}

	if err := validateDatabaseName(databaseName); err != nil {
		logger.Log(ctx, log.LevelError, "invalid database name", log.Err(err))

		return err
	}

	path, err := sanitizeMigrationsPath(migrationsPath)
	if err != nil {
		logger.Log(ctx, log.LevelError, "invalid migrations path", log.Err(err))

		return err
	}

	sourceURL, err := url.Parse(filepath.ToSlash(path))
	if err != nil {
		logger.Log(ctx, log.LevelError, "parsing migrations url failed", log.Err(err))

		return fmt.Errorf("parse migrations url: %w", err)
	}

	sourceURL.Scheme = "file"

	driver, err := migratepg.WithInstance(primary, &migratepg.Config{
		DatabaseName: databaseName,
		SchemaName:   "public",
	})
	if err != nil {
		logger.Log(ctx, log.LevelError, "creating migration driver failed", log.Err(err))

		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL.String(), databaseName, driver)
	if err != nil {
		logger.Log(ctx, log.LevelError, "creating migration instance failed", log.Err(err))

		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Log(ctx, log.LevelInfo, "no new migrations found, skipping")

			return nil
		}

		if errors.Is(err, os.ErrNotExist) {
			logger.Log(ctx, log.LevelWarn, "no migration files found, skipping migration step")

			return nil
		}

		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			logger.Log(ctx, log.LevelError, "migration left database dirty", log.Int("version", dirty.Version))

			return fmt.Errorf("migration failed: dirty database version %d", dirty.Version)
		}

		logger.Log(ctx, log.LevelError, "migration failed", log.Err(err))

		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}
