package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"timehub_bot/internal/config"
	"timehub_bot/internal/domain"
)

// pgxPool is the subset of *pgxpool.Pool used by the postgres backend.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// connectPostgres is overridable for tests.
var connectPostgres = func(ctx context.Context, dsn string) (pgxPool, error) {
	return pgxpool.Connect(ctx, dsn)
}

const (
	upsertMasterSQL = `
INSERT INTO masters (id, username, full_name, work_start, work_end)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	username = EXCLUDED.username,
	full_name = EXCLUDED.full_name,
	work_start = EXCLUDED.work_start,
	work_end = EXCLUDED.work_end`

	insertServiceSQL = `
INSERT INTO services (master_id, name, price, duration)
VALUES ($1, $2, $3, $4)
RETURNING id::text`

	listServicesSQL = `
SELECT id::text, master_id, name, price, duration
FROM services
WHERE master_id = $1
ORDER BY id`

	deleteServiceSQL = `DELETE FROM services WHERE id = $1`

	deleteOwnServiceSQL = `DELETE FROM services WHERE id = $1 AND master_id = $2`

	listBookingsSQL = `
SELECT b.id::text, b.master_id, b.service_id::text, s.name, b.client_name,
	b.client_phone, to_json(b.booking_time) #>> '{}', b.status
FROM bookings b
LEFT JOIN services s ON s.id = b.service_id
WHERE b.master_id = $1
ORDER BY b.booking_time`
)

// PostgresStore implements domain.Store with raw SQL over a pgx pool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgresStore opens a pool for cfg.PostgresDSN and pings it.
func NewPostgresStore(ctx context.Context, cfg config.Config) (*PostgresStore, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	pool, err := connectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) UpsertMaster(ctx context.Context, master domain.Master) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, upsertMasterSQL,
		master.ID, master.Username, master.FullName, master.WorkStart, master.WorkEnd,
	); err != nil {
		return fmt.Errorf("upsert master: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertService(ctx context.Context, service domain.Service) (domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Service{}, err
	}

	var id string
	err := s.pool.QueryRow(ctx, insertServiceSQL,
		service.MasterID, service.Name, service.Price, service.Duration,
	).Scan(&id)
	if err != nil {
		return domain.Service{}, fmt.Errorf("insert service: %w", err)
	}

	service.ID = id
	return service, nil
}

func (s *PostgresStore) ListServices(ctx context.Context, masterID int64) ([]domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listServicesSQL, masterID)
	if err != nil {
		return nil, fmt.Errorf("select services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(&svc.ID, &svc.MasterID, &svc.Name, &svc.Price, &svc.Duration); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read services: %w", err)
	}

	return services, nil
}

// DeleteService removes the service with filter.ID, restricted to
// filter.MasterID when set. Ids are bigint; anything else is rejected before
// reaching the database.
func (s *PostgresStore) DeleteService(ctx context.Context, filter domain.ServiceFilter) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	id, err := strconv.ParseInt(filter.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidServiceID, filter.ID)
	}

	var tag pgconn.CommandTag
	if filter.OwnerChecked() {
		tag, err = s.pool.Exec(ctx, deleteOwnServiceSQL, id, filter.MasterID)
	} else {
		tag, err = s.pool.Exec(ctx, deleteServiceSQL, id)
	}
	if err != nil {
		return 0, fmt.Errorf("delete service: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, masterID int64) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listBookingsSQL, masterID)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.MasterID, &b.ServiceID, &b.ServiceName, &b.ClientName,
			&b.ClientPhone, &b.BookingTime, &b.Status,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read bookings: %w", err)
	}

	return bookings, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	return nil
}

// Close releases the pool. It never fails.
func (s *PostgresStore) Close(context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}

	s.pool.Close()
	return nil
}

func (s *PostgresStore) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.pool == nil {
		return errors.New("postgres store is not initialized")
	}
	return nil
}
