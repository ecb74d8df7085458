// Package postgres implements the knowledge persistence boundaries on top
// of pgx. It is the only package that speaks SQL; everything above it goes
// through the interfaces defined in internal/knowledge.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// NewPool opens a pgx connection pool. With native true every connection
// registers the pgvector type codecs, which requires the extension to be
// installed; scan-backend deployments pass false and never touch the
// vector type.
func NewPool(ctx context.Context, connURL string, native bool) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	if native {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvector.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
