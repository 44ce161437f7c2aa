package main

import (
	"context"
	"fmt"

	"github.com/dtroode/authkeeper-server/internal/config"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/repository/memory"
	mongostore "github.com/dtroode/authkeeper-server/internal/repository/mongo"
	"github.com/dtroode/authkeeper-server/internal/repository/postgres"
	redisstore "github.com/dtroode/authkeeper-server/internal/repository/redis"
	"github.com/dtroode/authkeeper-server/internal/repository/sqlite"
)

// backends opens each configured database at most once so that the user and
// session stores can share a connection.
type backends struct {
	cfg    *config.Config
	logger *logger.Logger

	pg      *postgres.Connection
	lite    *sqlite.Store
	mongo   *mongostore.Connection
	closers []func(context.Context) error
}

func newBackends(cfg *config.Config, logger *logger.Logger) *backends {
	return &backends{cfg: cfg, logger: logger}
}

func (b *backends) postgres(ctx context.Context) (*postgres.Connection, error) {
	if b.pg == nil {
		conn, err := postgres.NewConnection(ctx, b.cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		b.pg = conn
		b.closers = append(b.closers, func(context.Context) error { return conn.Close() })
	}
	return b.pg, nil
}

func (b *backends) sqlite(ctx context.Context) (*sqlite.Store, error) {
	if b.lite == nil {
		store, err := sqlite.Open(ctx, b.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.lite = store
		b.closers = append(b.closers, func(context.Context) error { return store.Close() })
	}
	return b.lite, nil
}

func (b *backends) mongoConn(ctx context.Context) (*mongostore.Connection, error) {
	if b.mongo == nil {
		conn, err := mongostore.NewConnection(ctx, b.cfg.Mongo.URI, b.cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		b.mongo = conn
		b.closers = append(b.closers, conn.Close)
	}
	return b.mongo, nil
}

// userStore returns the configured user store and the pinger reporting its health.
func (b *backends) userStore(ctx context.Context) (model.UserStore, model.Pinger, error) {
	switch b.cfg.Database.Driver {
	case config.DriverMemory:
		repo := memory.NewUserRepository()
		return repo, repo, nil
	case config.DriverPostgres:
		conn, err := b.postgres(ctx)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(conn), conn, nil
	case config.DriverSQLite:
		store, err := b.sqlite(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(store.DB()), store, nil
	case config.DriverMongo:
		conn, err := b.mongoConn(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo, err := mongostore.NewUserRepository(ctx, conn.Database(), b.cfg.Mongo.UsersCollection)
		if err != nil {
			return nil, nil, err
		}
		return repo, conn, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", b.cfg.Database.Driver)
	}
}

// sessionStore returns the configured session store and the pinger reporting its health.
func (b *backends) sessionStore(ctx context.Context) (model.SessionStore, model.Pinger, error) {
	switch driver := b.cfg.SessionDriver(); driver {
	case config.DriverMemory:
		repo := memory.NewSessionRepository()
		return repo, repo, nil
	case config.DriverPostgres:
		conn, err := b.postgres(ctx)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewSessionRepository(conn), conn, nil
	case config.DriverSQLite:
		store, err := b.sqlite(ctx)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewSessionRepository(store.DB()), store, nil
	case config.DriverMongo:
		conn, err := b.mongoConn(ctx)
		if err != nil {
			return nil, nil, err
		}
		repo, err := mongostore.NewSessionRepository(ctx, conn.Database(), b.cfg.Mongo.SessionsCollection)
		if err != nil {
			return nil, nil, err
		}
		return repo, conn, nil
	case config.DriverRedis:
		client := redisstore.NewClient(b.cfg.Redis.Addr, b.cfg.Redis.Password, b.cfg.Redis.DB)
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		repo := redisstore.NewSessionRepository(client, b.cfg.Redis.KeyPrefix)
		if err := repo.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return repo, repo, nil
	default:
		return nil, nil, fmt.Errorf("unknown sessions driver %q", driver)
	}
}

// Close releases every opened backend in reverse order.
func (b *backends) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			b.logger.Error("failed to close storage", "error", err)
		}
	}
}
