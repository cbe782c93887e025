package store

import (
	"context"
	"time"

	"timehub_bot/internal/domain"
	"timehub_bot/internal/metrics"
)

// Operation labels recorded by Instrumented.
const (
	OpUpsertMaster  = "upsert_master"
	OpInsertService = "insert_service"
	OpListServices  = "list_services"
	OpDeleteService = "delete_service"
	OpListBookings  = "list_bookings"
	OpPing          = "ping"
)

// Instrumented wraps a store and records the outcome and latency of every
// call.
type Instrumented struct {
	next    domain.Store
	metrics *metrics.Metrics
}

// Instrument wraps next; a nil m records nothing.
func Instrument(next domain.Store, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

func (s *Instrumented) UpsertMaster(ctx context.Context, master domain.Master) error {
	started := time.Now()
	err := s.next.UpsertMaster(ctx, master)
	s.metrics.StoreOp(OpUpsertMaster, started, err)
	return err
}

func (s *Instrumented) InsertService(ctx context.Context, service domain.Service) (domain.Service, error) {
	started := time.Now()
	created, err := s.next.InsertService(ctx, service)
	s.metrics.StoreOp(OpInsertService, started, err)
	return created, err
}

func (s *Instrumented) ListServices(ctx context.Context, masterID int64) ([]domain.Service, error) {
	started := time.Now()
	services, err := s.next.ListServices(ctx, masterID)
	s.metrics.StoreOp(OpListServices, started, err)
	return services, err
}

func (s *Instrumented) DeleteService(ctx context.Context, filter domain.ServiceFilter) (int64, error) {
	started := time.Now()
	removed, err := s.next.DeleteService(ctx, filter)
	s.metrics.StoreOp(OpDeleteService, started, err)
	return removed, err
}

func (s *Instrumented) ListBookings(ctx context.Context, masterID int64) ([]domain.Booking, error) {
	started := time.Now()
	bookings, err := s.next.ListBookings(ctx, masterID)
	s.metrics.StoreOp(OpListBookings, started, err)
	return bookings, err
}

func (s *Instrumented) Ping(ctx context.Context) error {
	started := time.Now()
	err := s.next.Ping(ctx)
	s.metrics.StoreOp(OpPing, started, err)
	return err
}

func (s *Instrumented) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
