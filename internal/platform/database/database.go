// Package database opens and tunes the PostgreSQL connection pool.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/terralayer/spatial_layer/internal/config"
	"github.com/terralayer/spatial_layer/pkg/logger"
)

// maxConnectAttempts bounds the startup connection loop. The database
// container is usually still coming up when the app starts, so the first
// attempts are expected to fail.
const maxConnectAttempts = 4

// Open connects to the database described by cfg, retrying with a growing
// backoff until the server accepts connections.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = logger.NewDefault("database")
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		log.Infof("attempting database connection %d/%d", attempt, maxConnectAttempts)

		db, err := open(ctx, cfg)
		if err == nil {
			log.Info("database connection established")
			return db, nil
		}
		lastErr = err

		if attempt == maxConnectAttempts {
			break
		}
		backoff := time.Duration(attempt) * 5 * time.Second
		log.WithError(err).Warnf("database connection failed, retrying in %s", backoff)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("connect database after %d attempts: %w", maxConnectAttempts, lastErr)
}

func open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
