// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"time"

	"github.com/seedlab/seedlab/internal/config"
	xglog "github.com/seedlab/seedlab/internal/log"
)

// New builds the cache selected by cfg.Backend.
func New(cfg config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(time.Minute), nil
	case "redis":
		return NewRedisCache(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, xglog.WithComponent("cache"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
