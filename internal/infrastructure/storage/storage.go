// Package storage opens the repository pair selected by STORE_DRIVER.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/marketplace/config"
	"github.com/ErlanBelekov/marketplace/internal/health"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/memory"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/mongostore"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/marketplace/internal/repository"
)

// Stores holds the repositories plus whatever the health checker should ping.
// Close releases the underlying connections.
type Stores struct {
	Users    repository.UserRepository
	Listings repository.ListingRepository
	Pingers  map[string]health.Pinger
	Close    func()

	shared bool
}

// Shared reports whether the stores outlive this process, which the
// standalone pruner requires.
func (s *Stores) Shared() bool { return s.shared }

func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &Stores{
			Users:    postgres.NewUserRepository(pool),
			Listings: postgres.NewListingRepository(pool),
			Pingers:  map[string]health.Pinger{"postgres": pool},
			Close:    pool.Close,
			shared:   true,
		}, nil

	case "mongo":
		store, err := mongostore.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return &Stores{
			Users:    store.Users(),
			Listings: store.Listings(),
			Pingers:  map[string]health.Pinger{"mongo": store},
			Close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.Close(closeCtx); err != nil {
					logger.Error("mongo disconnect", "error", err)
				}
			},
			shared: true,
		}, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		return &Stores{
			Users:    store.Users(),
			Listings: store.Listings(),
			Pingers:  map[string]health.Pinger{},
			Close:    func() {},
		}, nil
	}
}
