package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/garelay/internal/config"
	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/server"
)

// openedStore is a credential store with its readiness check and cleanup.
// check and close are nil when the backend has nothing to offer.
type openedStore struct {
	credentials.Store
	check server.Check
	close func(context.Context) error
}

func openStore(ctx context.Context, cfg config.StoreConfig, debug bool, logger *slog.Logger) (openedStore, error) {
	switch cfg.Type {
	case credentials.TypeMemory:
		logger.Warn("using in-memory credential store, credentials are lost on restart")
		store := credentials.NewMemoryStore()
		store.SetLogger(logger)
		return openedStore{Store: store}, nil

	case credentials.TypeREST:
		store, err := credentials.NewRESTStore(credentials.RESTStoreConfig{
			BaseURL:    cfg.URL,
			ServiceKey: cfg.ServiceKey,
			Table:      cfg.Table,
		})
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{Store: store}, nil

	case credentials.TypeSQL:
		db, err := credentials.OpenSQLite(cfg.SQLDSN, debug)
		if err != nil {
			return openedStore{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return openedStore{}, fmt.Errorf("failed to access sql connection: %w", err)
		}
		store, err := credentials.NewSQLStore(db)
		if err != nil {
			_ = sqlDB.Close()
			return openedStore{}, err
		}
		return openedStore{
			Store: store,
			check: sqlDB.PingContext,
			close: func(context.Context) error { return sqlDB.Close() },
		}, nil

	case credentials.TypeRedis:
		client, err := credentials.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return openedStore{}, err
		}
		return openedStore{
			Store: credentials.NewRedisStore(client, cfg.RedisKeyPrefix),
			check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func(context.Context) error { return client.Close() },
		}, nil

	case credentials.TypeMongo:
		db, err := credentials.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return openedStore{}, err
		}
		store := credentials.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(ctx)
			return openedStore{}, err
		}
		return openedStore{
			Store: store,
			check: func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
			close: db.Client().Disconnect,
		}, nil
	}

	return openedStore{}, credentials.ValidateType(cfg.Type)
}
