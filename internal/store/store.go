// Package store opens the repositories for the configured storage driver.
package store

import (
	"context"
	"fmt"
	"io"
	"log"

	"storefront/internal/config"
	"storefront/internal/db"
	cartrepo "storefront/internal/repository/cart"
	"storefront/internal/repository/memory"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	userrepo "storefront/internal/repository/user"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Store bundles one driver's repositories. Pool is set only for the postgres
// driver.
type Store struct {
	Driver   string
	Products productrepo.Repository
	Carts    cartrepo.Repository
	Orders   orderrepo.Repository
	Users    userrepo.Repository
	Pinger   Pinger
	Pool     *pgxpool.Pool

	close func()
}

func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &Store{
			Driver:   cfg.StoreDriver,
			Products: productrepo.NewPostgres(pool, logger),
			Carts:    cartrepo.NewPostgres(pool, logger),
			Orders:   orderrepo.NewPostgres(pool, logger),
			Users:    userrepo.NewPostgres(pool, logger),
			Pinger:   pool,
			Pool:     pool,
			close:    pool.Close,
		}, nil

	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		database := client.Database(cfg.MongoDatabase)
		if err := db.EnsureMongoIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &Store{
			Driver:   cfg.StoreDriver,
			Products: productrepo.NewMongo(database, logger),
			Carts:    cartrepo.NewMongo(database, logger),
			Orders:   orderrepo.NewMongo(database, logger),
			Users:    userrepo.NewMongo(database, logger),
			Pinger:   db.MongoPinger{Client: client},
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					logger.Printf("mongo disconnect: %v", err)
				}
			},
		}, nil

	case config.StoreMemory:
		mem := memory.New()
		logger.Printf("using in-memory store; data is lost on exit")
		return &Store{
			Driver:   cfg.StoreDriver,
			Products: mem.Products(),
			Carts:    mem.Carts(),
			Orders:   mem.Orders(),
			Users:    mem.Users(),
			Pinger:   mem,
			close:    func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
