package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fabfab/docqa/admin"
	"github.com/fabfab/docqa/archive"
	"github.com/fabfab/docqa/chat"
	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/database"
	"github.com/fabfab/docqa/docstore"
	"github.com/fabfab/docqa/embeddings"
	"github.com/fabfab/docqa/history"
	"github.com/fabfab/docqa/ingestion"
	"github.com/fabfab/docqa/knowledge"
	"github.com/fabfab/docqa/llm"
)

// runtime holds the server-side dependencies built from configuration.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger

	pool   *pgxpool.Pool
	driver neo4j.DriverWithContext

	store    docstore.Store
	catalog  knowledge.Catalog
	archive  archive.Store
	embedder embeddings.Embedder
	llm      llm.Client
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *runtime, err error) {
	rt := &runtime{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			rt.Close(context.Background())
		}
	}()

	if cfg.VectorStore == config.BackendPostgres || cfg.Catalog == config.BackendPostgres {
		if rt.pool, err = database.NewPostgresPool(ctx, cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
	}

	switch cfg.VectorStore {
	case config.BackendPostgres:
		if err = database.EnsureVectorSchema(ctx, rt.pool, cfg.Embeddings.Dimension); err != nil {
			return nil, fmt.Errorf("ensure vector schema: %w", err)
		}
		rt.store = docstore.NewPostgresStore(rt.pool)
	default:
		rt.store = docstore.NewMemoryStore()
	}

	switch cfg.Catalog {
	case config.BackendPostgres:
		if err = database.EnsureCatalogSchema(ctx, rt.pool); err != nil {
			return nil, fmt.Errorf("ensure catalog schema: %w", err)
		}
		rt.catalog = knowledge.NewPostgresCatalog(rt.pool)
	case config.BackendNeo4j:
		if rt.driver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass); err != nil {
			return nil, fmt.Errorf("neo4j connection: %w", err)
		}
		rt.catalog = knowledge.NewGraphCatalog(rt.driver)
	default:
		rt.catalog = knowledge.NewMemoryCatalog()
	}

	if rt.archive, err = archive.New(ctx, cfg.Archive, logger); err != nil {
		return nil, fmt.Errorf("archive setup: %w", err)
	}
	if rt.embedder, err = embeddings.NewEmbedder(cfg); err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}
	if rt.llm, err = llm.NewClient(cfg); err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	return rt, nil
}

func (rt *runtime) Close(ctx context.Context) {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.driver != nil {
		_ = rt.driver.Close(ctx)
	}
}

func (rt *runtime) ingestion() *ingestion.Service {
	in := rt.cfg.Ingestion
	return ingestion.NewService(rt.embedder, rt.llm, rt.store, rt.logger,
		ingestion.WithCatalog(rt.catalog),
		ingestion.WithArchive(rt.archive),
		ingestion.WithChunking(in.ChunkSize, in.ChunkOverlap),
		ingestion.WithSummaryPolicy(in.SummaryPolicy, in.SummaryMaxChars),
		ingestion.WithStoreWriteAttempts(in.StoreWriteAttempts),
		ingestion.WithEmbedBatchSize(rt.cfg.Embeddings.BatchSize),
	)
}

func (rt *runtime) chat() *chat.Service {
	return chat.NewService(rt.store, rt.embedder, rt.llm, rt.logger)
}

func (rt *runtime) resetter() *admin.Resetter {
	return admin.NewResetter(rt.store, rt.catalog, rt.archive, rt.logger)
}

// openHistory returns the client-side transcript store and its closer.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (history.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		client, err := history.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return history.NewRedisStore(client), func() { _ = client.Close() }, nil
	case config.BackendSQLite:
		store, err := history.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return history.NewMemoryStore(), func() {}, nil
	}
}
