package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/deskhive/kbase/db"
	"github.com/deskhive/kbase/internal/config"
	"github.com/deskhive/kbase/internal/ingest"
	"github.com/deskhive/kbase/internal/knowledge"
	"github.com/deskhive/kbase/internal/observability"
	"github.com/deskhive/kbase/internal/postgres"
)

// Setup creates and initializes the application. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Datadog.AgentHost,
		Environment: cfg.Datadog.Environment,
		ServiceName: cfg.Datadog.ServiceName,
	})

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.Queries = postgres.New(pool, cfg.Native())

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = knowledge.NewGenkitEmbedder(embedder)

	a.Store = knowledge.NewStore(a.Queries, a.Embedder, logger.With("component", "store"))

	backend, err := provideBackend(cfg, a.Queries, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = knowledge.NewEngine(backend, a.Queries, logger.With("component", "search"))

	var limiter *rate.Limiter
	if cfg.IngestRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.IngestRatePerSecond), 1)
	}
	a.Ingestor = ingest.NewIngestor(a.Store, a.Queries, limiter, logger.With("component", "ingest"))

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool. The scan
// backend stops migrations before the pgvector extension, so it runs
// against a vanilla Postgres.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), cfg.Native()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresURL(), cfg.Native())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the configured embedding provider.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit registration (no auto-discovery).
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"embedder", cfg.EmbedderModel, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini / googleai
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "embedder", cfg.EmbedderModel)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address.
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideBackend selects the retrieval strategy from configuration.
func provideBackend(cfg *config.Config, queries *postgres.Queries, logger *slog.Logger) (knowledge.Backend, error) {
	switch cfg.SearchBackend {
	case config.BackendPgvector:
		return knowledge.NewPgvectorBackend(queries, logger.With("component", "pgvector")), nil
	case config.BackendScan:
		return knowledge.NewScanBackend(queries, logger.With("component", "scan")), nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
	}
}
