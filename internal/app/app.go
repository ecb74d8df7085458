// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the retrieval engine: database pool,
// Genkit embedder, knowledge store, search backend, ingestor, and tracing.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskhive/kbase/internal/config"
	"github.com/deskhive/kbase/internal/ingest"
	"github.com/deskhive/kbase/internal/knowledge"
	"github.com/deskhive/kbase/internal/postgres"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder knowledge.Embedder
	DBPool   *pgxpool.Pool
	Queries  *postgres.Queries
	Store    *knowledge.Store
	Engine   *knowledge.Engine
	Ingestor *ingest.Ingestor

	otelCleanup func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.logger().Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
