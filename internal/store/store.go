// Package store holds the data store backends behind domain.Store: the
// Supabase REST API, PostgreSQL and MongoDB.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"timehub_bot/internal/config"
	"timehub_bot/internal/domain"
	"timehub_bot/internal/logging"
)

// Open builds the backend selected by cfg.StoreBackend. When the backend
// lacks credentials an Unavailable store is returned instead of an error so
// the bot can still start; every call then fails with ErrStoreNotConfigured.
func Open(ctx context.Context, cfg config.Config, logger *logrus.Entry) (domain.Store, error) {
	if logger == nil {
		logger = logging.Logger()
	}
	logger = logger.WithField("backend", cfg.StoreBackend)

	if missing := cfg.MissingStoreCredentials(); len(missing) > 0 {
		logger.WithFields(logrus.Fields{
			"event":   "store_unavailable",
			"missing": strings.Join(missing, ","),
		}).Warn("store credentials missing; store calls will fail")
		return Unavailable{Backend: cfg.StoreBackend}, nil
	}

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		supabaseStore, err := NewSupabaseStore(cfg)
		if err != nil {
			return nil, err
		}
		return supabaseStore, nil
	case config.BackendPostgres:
		if cfg.PostgresMigrate {
			if err := Migrate(ctx, cfg.PostgresDSN, logger); err != nil {
				return nil, err
			}
			logger.WithField("event", "migrations_applied").Info("postgres schema is up to date")
		}
		postgresStore, err := NewPostgresStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return postgresStore, nil
	case config.BackendMongo:
		mongoStore, err := NewMongoStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			_ = mongoStore.Close(ctx)
			return nil, err
		}
		logger.WithField("event", "mongo_indexes_ready").Info("mongo indexes ensured")
		return mongoStore, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// Unavailable is the store used when the configured backend has no
// credentials.
type Unavailable struct {
	Backend string
}

func (u Unavailable) err() error {
	return fmt.Errorf("%s: %w", u.Backend, domain.ErrStoreNotConfigured)
}

func (u Unavailable) UpsertMaster(context.Context, domain.Master) error {
	return u.err()
}

func (u Unavailable) InsertService(context.Context, domain.Service) (domain.Service, error) {
	return domain.Service{}, u.err()
}

func (u Unavailable) ListServices(context.Context, int64) ([]domain.Service, error) {
	return nil, u.err()
}

func (u Unavailable) DeleteService(context.Context, domain.ServiceFilter) (int64, error) {
	return 0, u.err()
}

func (u Unavailable) ListBookings(context.Context, int64) ([]domain.Booking, error) {
	return nil, u.err()
}

func (u Unavailable) Ping(context.Context) error {
	return u.err()
}

func (u Unavailable) Close(context.Context) error {
	return nil
}
