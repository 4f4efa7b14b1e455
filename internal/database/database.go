// Package database opens the configured document store backend.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/tandem/internal/config"
	"github.com/vedran77/tandem/internal/docstore"
	"github.com/vedran77/tandem/internal/docstore/mongostore"
	"github.com/vedran77/tandem/internal/docstore/postgres"
	"github.com/vedran77/tandem/internal/logging"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())

	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

func ConnectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("unable to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("unable to ping mongo: %w", err)
	}

	return client, nil
}

// Open returns the store selected by cfg.StoreBackend, with its schema or
// indexes in place. The returned close func releases the store and its
// connections.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (docstore.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store := postgres.New(pool, logger)
		return store, func() {
			_ = store.Close()
			pool.Close()
		}, nil

	case config.BackendMongo:
		client, err := ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.New(client, cfg.MongoDatabase, logger)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return store, func() {
			_ = store.Close()
			_ = client.Disconnect(context.Background())
		}, nil

	case config.BackendMemory:
		store := docstore.NewMemory()
		return store, func() { _ = store.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}
