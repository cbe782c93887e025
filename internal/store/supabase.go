package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"timehub_bot/internal/config"
	"timehub_bot/internal/domain"
)

// Table names shared by the relational backends.
const (
	TableMasters  = "masters"
	TableServices = "services"
	TableBookings = "bookings"
)

const bookingColumns = "id,master_id,service_id,client_name,client_phone,booking_time,status,services(name)"

// newSupabaseClient is overridable for tests.
var newSupabaseClient = func(url, key string) (*supabase.Client, error) {
	return supabase.NewClient(url, key, nil)
}

// SupabaseStore implements domain.Store on top of the Supabase REST API.
type SupabaseStore struct {
	client *supabase.Client
}

// flexibleID accepts both JSON numbers and strings so bigint and uuid
// primary keys decode to the same string form.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

type serviceRow struct {
	ID       flexibleID `json:"id"`
	MasterID int64      `json:"master_id"`
	Name     string     `json:"name"`
	Price    int        `json:"price"`
	Duration int        `json:"duration"`
}

func (r serviceRow) toDomain() domain.Service {
	return domain.Service{
		ID:       string(r.ID),
		MasterID: r.MasterID,
		Name:     r.Name,
		Price:    r.Price,
		Duration: r.Duration,
	}
}

type bookingRow struct {
	ID          flexibleID  `json:"id"`
	MasterID    int64       `json:"master_id"`
	ServiceID   *flexibleID `json:"service_id"`
	ClientName  string      `json:"client_name"`
	ClientPhone *string     `json:"client_phone"`
	BookingTime string      `json:"booking_time"`
	Status      *string     `json:"status"`
	Services    *struct {
		Name string `json:"name"`
	} `json:"services"`
}

// NewSupabaseStore builds a REST client for the configured project. No
// request is issued until the first operation.
func NewSupabaseStore(cfg config.Config) (*SupabaseStore, error) {
	client, err := newSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	return &SupabaseStore{client: client}, nil
}

// UpsertMaster inserts or replaces the master row keyed by id.
func (s *SupabaseStore) UpsertMaster(ctx context.Context, master domain.Master) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, _, err := s.client.From(TableMasters).Upsert(master, "id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert master: %w", err)
	}

	return nil
}

// InsertService stores a new service and returns the row echoed back by the
// API, including its generated id.
func (s *SupabaseStore) InsertService(ctx context.Context, service domain.Service) (domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Service{}, err
	}

	payload := map[string]interface{}{
		"master_id": service.MasterID,
		"name":      service.Name,
		"price":     service.Price,
		"duration":  service.Duration,
	}

	data, _, err := s.client.From(TableServices).Insert(payload, false, "", "representation", "").Execute()
	if err != nil {
		return domain.Service{}, fmt.Errorf("insert service: %w", err)
	}

	var rows []serviceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return domain.Service{}, fmt.Errorf("decode inserted service: %w", err)
	}
	if len(rows) == 0 {
		return service, nil
	}

	return rows[0].toDomain(), nil
}

// ListServices returns the services of masterID ordered by id.
func (s *SupabaseStore) ListServices(ctx context.Context, masterID int64) ([]domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data, _, err := s.client.From(TableServices).
		Select("id,master_id,name,price,duration", "", false).
		Eq("master_id", strconv.FormatInt(masterID, 10)).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select services: %w", err)
	}

	var rows []serviceRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}

	services := make([]domain.Service, 0, len(rows))
	for _, row := range rows {
		services = append(services, row.toDomain())
	}

	return services, nil
}

// DeleteService removes the service with filter.ID, restricted to
// filter.MasterID when set, and reports how many rows were removed.
func (s *SupabaseStore) DeleteService(ctx context.Context, filter domain.ServiceFilter) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if filter.ID == "" {
		return 0, fmt.Errorf("%w: empty", domain.ErrInvalidServiceID)
	}

	query := s.client.From(TableServices).
		Delete("representation", "").
		Eq("id", filter.ID)
	if filter.OwnerChecked() {
		query = query.Eq("master_id", strconv.FormatInt(filter.MasterID, 10))
	}

	data, _, err := query.Execute()
	if err != nil {
		return 0, fmt.Errorf("delete service: %w", err)
	}

	var rows []json.RawMessage
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &rows); err != nil {
			return 0, fmt.Errorf("decode deleted services: %w", err)
		}
	}

	return int64(len(rows)), nil
}

// ListBookings returns the bookings of masterID ordered by booking_time with
// the service name resolved through the embedded services relation.
func (s *SupabaseStore) ListBookings(ctx context.Context, masterID int64) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	data, _, err := s.client.From(TableBookings).
		Select(bookingColumns, "", false).
		Eq("master_id", strconv.FormatInt(masterID, 10)).
		Order("booking_time", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}

	var rows []bookingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}

	bookings := make([]domain.Booking, 0, len(rows))
	for _, row := range rows {
		booking := domain.Booking{
			ID:          string(row.ID),
			MasterID:    row.MasterID,
			ClientName:  row.ClientName,
			ClientPhone: row.ClientPhone,
			BookingTime: row.BookingTime,
			Status:      row.Status,
		}
		if row.ServiceID != nil && *row.ServiceID != "" {
			id := string(*row.ServiceID)
			booking.ServiceID = &id
		}
		if row.Services != nil {
			name := row.Services.Name
			booking.ServiceName = &name
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

// Ping issues a cheap head-only select against the masters table.
func (s *SupabaseStore) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if _, _, err := s.client.From(TableMasters).Select("id", "", true).Limit(1, "").Execute(); err != nil {
		return fmt.Errorf("ping supabase: %w", err)
	}

	return nil
}

// Close is a no-op; the REST client holds no persistent connections.
func (s *SupabaseStore) Close(context.Context) error {
	return nil
}

func (s *SupabaseStore) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.client == nil {
		return errors.New("supabase store is not initialized")
	}
	return ctx.Err()
}
