package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gamestore/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 10
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
)

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the connection
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Health reports connection pool statistics and liveness
func Health(ctx context.Context, db *sql.DB) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprint(dbStats.InUse)
	stats["idle"] = fmt.Sprint(dbStats.Idle)
	stats["wait_count"] = fmt.Sprint(dbStats.WaitCount)
	return stats
}
