package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-user-identity/app/db"
	"github.com/FACorreiaa/go-user-identity/config"
	"github.com/FACorreiaa/go-user-identity/internal/api/auth"
	"github.com/FACorreiaa/go-user-identity/internal/api/credential"
	"github.com/FACorreiaa/go-user-identity/internal/api/user"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	UserRepo    user.UserRepo
	UserService user.UserService
	AuthService auth.AuthService
	UserHandler *user.HandlerImpl
	AuthHandler *auth.AuthHandler

	sqlite *user.SQLiteUserRepo
}

// NewContainer initializes and returns a new dependency container.
// The user store is chosen by storage.driver.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	if cfg.Cache.Enabled && !singleNodeDriver(cfg.Storage.Driver) {
		return nil, fmt.Errorf("cache.enabled requires the sqlite or memory storage driver, got %q", cfg.Storage.Driver)
	}

	repo, err := c.openUserRepo(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	if cfg.Cache.Enabled {
		repo = user.NewCachedUserRepo(repo, cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}

	codec, err := credential.NewBcryptCodec(cfg.Security.BcryptCost, cfg.Security.MaxConcurrentHashes, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("invalid security config: %w", err)
	}

	signing := auth.NewSigningConfig(cfg.JWT)
	if err := signing.Validate(); err != nil {
		// Logins will fail with 500 until this is fixed; the rest of the API still works.
		logger.Warn("Token signing is not configured", slog.Any("error", err))
	}

	userService := user.NewUserService(repo, codec, logger)
	authService := auth.NewAuthService(repo, codec, signing, logger)

	c.UserRepo = repo
	c.UserService = userService
	c.AuthService = authService
	c.UserHandler = user.NewHandlerImpl(userService, logger)
	c.AuthHandler = auth.NewAuthHandler(authService, logger)
	return c, nil
}

// singleNodeDriver reports whether every write to the store goes through this
// process, which is what the process-local cache relies on for eviction.
func singleNodeDriver(driver string) bool {
	return driver == DriverSQLite || driver == DriverMemory
}

func (c *Container) openUserRepo(ctx context.Context) (user.UserRepo, error) {
	cfg, logger := c.Config, c.Logger

	switch cfg.Storage.Driver {
	case DriverPostgres, "":
		dbConfig, err := database.NewDatabaseConfig(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to generate database config: %w", err)
		}
		if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		pool, err := database.Init(ctx, dbConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		c.Pool = pool
		if !database.WaitForDB(ctx, pool, logger) {
			return nil, errors.New("database not ready")
		}
		return user.NewPostgresUserRepo(pool, logger), nil

	case DriverSQLite:
		repo, err := user.OpenSQLiteUserRepo(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		c.sqlite = repo
		logger.Info("Using SQLite user store", slog.String("path", cfg.Storage.SQLitePath))
		return repo, nil

	case DriverMemory:
		logger.Warn("Using in-memory user store; data is lost on restart")
		return user.NewMemoryUserRepo(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
		c.Logger.Info("Database connection pool closed")
	}
	if c.sqlite != nil {
		if err := c.sqlite.Close(); err != nil {
			c.Logger.Warn("Failed to close SQLite store", slog.Any("error", err))
		}
	}
}
