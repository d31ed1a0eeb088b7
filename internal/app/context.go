// Package app carries the process-wide dependencies shared by services.
package app

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/matchbot/internal/cache"
)

// AppContext is built once in main and passed to every service
// constructor. RedisCache may be nil when Redis is unreachable at startup;
// callers then go straight to the database.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
}

// Close releases the database pool and the Redis client.
func (a *AppContext) Close() error {
	var errs []error
	if a.RedisCache != nil {
		errs = append(errs, a.RedisCache.Client.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
