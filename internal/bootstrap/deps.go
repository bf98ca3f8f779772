package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domenick1991/airbot/api"
	"github.com/Domenick1991/airbot/config"
	"github.com/Domenick1991/airbot/internal/cache"
	"github.com/Domenick1991/airbot/internal/domain"
	"github.com/Domenick1991/airbot/internal/kafka"
	"github.com/Domenick1991/airbot/internal/repository"
	"github.com/Domenick1991/airbot/internal/service/dialogue"
)

// Deps holds the infrastructure clients built from config. Postgres, Redis
// and Kafka are each optional: a missing address selects the in-process
// fallback or turns the feature off.
type Deps struct {
	Pool     *pgxpool.Pool
	Cache    dialogue.StateCache
	Memory   *cache.MemoryStore
	Producer *kafka.Producer
	Health   map[string]api.Pinger

	closers []func() error
}

func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{Health: map[string]api.Pinger{}}

	if cfg.Database.Host != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		if err := repository.Migrate(ctx, pool); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		d.Pool = pool
		d.Health["postgres"] = pool
	} else {
		logger.Warn("no database configured, bookings and sessions stay in memory")
	}

	if cfg.Redis.Addr != "" {
		store := cache.NewRedisStore(cfg.Redis)
		d.closers = append(d.closers, store.Close)
		d.Cache = store
		d.Health["redis"] = store
	} else {
		d.Memory = cache.NewMemoryStore()
		d.Cache = d.Memory
	}

	if len(cfg.Kafka.Brokers) > 0 {
		d.Producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		d.closers = append(d.closers, d.Producer.Close)
		d.Health["kafka"] = api.PingFunc(d.Producer.CheckConnection)
	}
	return d, nil
}

// Close releases clients in reverse order of creation.
func (d *Deps) Close() error {
	var result *multierror.Error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.closers = nil
	return result.ErrorOrNil()
}

// BookingRepository is the Postgres ledger when a database is configured and
// the in-memory one otherwise. Either way it is seeded with bookings.
func (d *Deps) BookingRepository(ctx context.Context, seed []domain.ExternalBooking) (repository.BookingRepository, error) {
	var repo repository.BookingRepository
	if d.Pool != nil {
		repo = repository.NewBookingRepository(d.Pool)
	} else {
		repo = repository.NewMemoryBookingRepository()
	}
	if err := repo.Seed(ctx, seed); err != nil {
		return nil, fmt.Errorf("seed bookings: %w", err)
	}
	return repo, nil
}
