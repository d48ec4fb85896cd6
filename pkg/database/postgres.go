// Package database opens PostgreSQL pools through lib/pq.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alijeyrad/medvault_backend/config"
)

const pingTimeout = 5 * time.Second

// Open connects to the application database described by the central config.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	return Connect(context.Background(), FromCentralConfig(cfg))
}

// Connect opens a pool and pings it. The pool is closed when the ping fails.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.DBName, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping %s@%s: %w", cfg.DBName, cfg.Host, err)
	}
	return db, nil
}
