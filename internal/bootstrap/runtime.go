// Package bootstrap connects the shared runtime dependencies used by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedAdmin ensures the ADMIN_EMAIL account exists after connecting.
	SeedAdmin bool
	// SkipSchema leaves the schema untouched, e.g. for cmd/migrate.
	SkipSchema bool
}

// InitRuntime connects to the database and Redis. Redis is optional: a nil
// client is returned when it cannot be reached.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: !opts.SkipSchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without it", slog.String("error", err.Error()))
		rdb = nil
	}

	if opts.SeedAdmin {
		if err := EnsureAdmin(ctx, cfg, db); err != nil {
			_ = database.Close(db)
			if rdb != nil {
				_ = rdb.Close()
			}
			return nil, nil, fmt.Errorf("failed to seed admin: %w", err)
		}
	}

	return db, rdb, nil
}

// EnsureAdmin creates or promotes the configured admin account. It is a no-op
// when ADMIN_EMAIL is not set.
func EnsureAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.AdminEmail == "" {
		return nil
	}

	users := service.NewUserService(repository.NewUserRepository(db))
	user, created, err := users.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}

	middleware.Logger.Info("admin account ensured",
		slog.String("email", user.Email),
		slog.Bool("created", created),
	)
	return nil
}
