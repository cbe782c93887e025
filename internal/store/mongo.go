package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"timehub_bot/internal/config"
	"timehub_bot/internal/domain"
)

// Collection names used by the mongo backend. They mirror the relational
// table names.
const (
	CollectionMasters  = "masters"
	CollectionServices = "services"
	CollectionBookings = "bookings"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

type masterCollection interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type serviceCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type bookingCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// MongoStore implements domain.Store on MongoDB. Service ids are ObjectID hex
// strings; bookings reference services by ObjectID.
type MongoStore struct {
	client mongoClient
	db     *mongo.Database

	masters  masterCollection
	services serviceCollection
	bookings bookingCollection
}

type serviceDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	MasterID int64              `bson:"master_id"`
	Name     string             `bson:"name"`
	Price    int                `bson:"price"`
	Duration int                `bson:"duration"`
}

type bookingDocument struct {
	ID          primitive.ObjectID  `bson:"_id"`
	MasterID    int64               `bson:"master_id"`
	ServiceID   *primitive.ObjectID `bson:"service_id,omitempty"`
	ClientName  string              `bson:"client_name"`
	ClientPhone *string             `bson:"client_phone,omitempty"`
	BookingTime bson.RawValue       `bson:"booking_time"`
	Status      *string             `bson:"status,omitempty"`
}

// NewMongoStore connects to MongoDB using the supplied configuration and
// verifies connectivity with a ping.
func NewMongoStore(ctx context.Context, cfg config.Config) (*MongoStore, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.MongoDB)

	return &MongoStore{
		client:   client,
		db:       db,
		masters:  db.Collection(CollectionMasters),
		services: db.Collection(CollectionServices),
		bookings: db.Collection(CollectionBookings),
	}, nil
}

// Collection returns a collection handle for the given name.
func (s *MongoStore) Collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique master index and the lookup indexes used by
// the catalog and booking queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.db == nil {
		return errors.New("mongo store is not initialized")
	}

	plan := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			collection: CollectionMasters,
			models: []mongo.IndexModel{{
				Keys:    bson.D{{Key: "id", Value: 1}},
				Options: options.Index().SetName("master_id_unique").SetUnique(true),
			}},
		},
		{
			collection: CollectionServices,
			models: []mongo.IndexModel{{
				Keys:    bson.D{{Key: "master_id", Value: 1}},
				Options: options.Index().SetName("services_master_id"),
			}},
		},
		{
			collection: CollectionBookings,
			models: []mongo.IndexModel{{
				Keys:    bson.D{{Key: "master_id", Value: 1}, {Key: "booking_time", Value: 1}},
				Options: options.Index().SetName("bookings_master_time"),
			}},
		},
	}

	for _, step := range plan {
		if _, err := createIndexes(ctx, s.Collection(step.collection), step.models); err != nil {
			return fmt.Errorf("create %s indexes: %w", step.collection, err)
		}
	}

	return nil
}

// UpsertMaster replaces the master document with the same id, inserting it
// when missing.
func (s *MongoStore) UpsertMaster(ctx context.Context, master domain.Master) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.masters.ReplaceOne(ctx,
		bson.M{"id": master.ID},
		master,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert master: %w", err)
	}

	return nil
}

// InsertService stores a new service and returns it with the generated id.
func (s *MongoStore) InsertService(ctx context.Context, service domain.Service) (domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Service{}, err
	}

	result, err := s.services.InsertOne(ctx, serviceDocument{
		MasterID: service.MasterID,
		Name:     service.Name,
		Price:    service.Price,
		Duration: service.Duration,
	})
	if err != nil {
		return domain.Service{}, fmt.Errorf("insert service: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		service.ID = oid.Hex()
	} else if result.InsertedID != nil {
		service.ID = fmt.Sprint(result.InsertedID)
	}

	return service, nil
}

// ListServices returns the services of masterID in insertion order.
func (s *MongoStore) ListServices(ctx context.Context, masterID int64) ([]domain.Service, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.services.Find(ctx,
		bson.M{"master_id": masterID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}

	var docs []serviceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}

	services := make([]domain.Service, 0, len(docs))
	for _, doc := range docs {
		services = append(services, domain.Service{
			ID:       doc.ID.Hex(),
			MasterID: doc.MasterID,
			Name:     doc.Name,
			Price:    doc.Price,
			Duration: doc.Duration,
		})
	}

	return services, nil
}

// DeleteService removes the service with filter.ID, restricted to
// filter.MasterID when set.
func (s *MongoStore) DeleteService(ctx context.Context, filter domain.ServiceFilter) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}

	oid, err := primitive.ObjectIDFromHex(filter.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidServiceID, filter.ID)
	}

	query := bson.M{"_id": oid}
	if filter.OwnerChecked() {
		query["master_id"] = filter.MasterID
	}

	result, err := s.services.DeleteOne(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete service: %w", err)
	}
	if result == nil {
		return 0, nil
	}

	return result.DeletedCount, nil
}

// ListBookings returns the bookings of masterID ordered by booking_time and
// resolves service names with a second query.
func (s *MongoStore) ListBookings(ctx context.Context, masterID int64) ([]domain.Booking, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.bookings.Find(ctx,
		bson.M{"master_id": masterID},
		options.Find().SetSort(bson.D{{Key: "booking_time", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}

	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}

	names, err := s.serviceNames(ctx, docs)
	if err != nil {
		return nil, err
	}

	bookings := make([]domain.Booking, 0, len(docs))
	for _, doc := range docs {
		booking := domain.Booking{
			ID:          doc.ID.Hex(),
			MasterID:    doc.MasterID,
			ClientName:  doc.ClientName,
			ClientPhone: doc.ClientPhone,
			BookingTime: rawBookingTime(doc.BookingTime),
			Status:      doc.Status,
		}

		if doc.ServiceID != nil {
			serviceID := doc.ServiceID.Hex()
			booking.ServiceID = &serviceID
			if name, ok := names[*doc.ServiceID]; ok {
				booking.ServiceName = &name
			}
		}

		bookings = append(bookings, booking)
	}

	return bookings, nil
}

func (s *MongoStore) serviceNames(ctx context.Context, docs []bookingDocument) (map[primitive.ObjectID]string, error) {
	ids := make([]primitive.ObjectID, 0, len(docs))
	seen := make(map[primitive.ObjectID]bool, len(docs))
	for _, doc := range docs {
		if doc.ServiceID == nil || seen[*doc.ServiceID] {
			continue
		}
		seen[*doc.ServiceID] = true
		ids = append(ids, *doc.ServiceID)
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	cursor, err := s.services.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find booked services: %w", err)
	}

	var services []serviceDocument
	if err := cursor.All(ctx, &services); err != nil {
		return nil, fmt.Errorf("decode booked services: %w", err)
	}

	for _, svc := range services {
		names[svc.ID] = svc.Name
	}

	return names, nil
}

// rawBookingTime renders the stored booking_time as an ISO string: strings
// are passed through, BSON dates become UTC RFC 3339.
func rawBookingTime(value bson.RawValue) string {
	switch value.Type {
	case bson.TypeString:
		return value.StringValue()
	case bson.TypeDateTime:
		return time.UnixMilli(value.DateTime()).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// Ping checks connectivity with the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.client == nil {
		return errors.New("mongo store is not initialized")
	}

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	return nil
}

// Close disconnects the Mongo client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if s == nil || s.masters == nil || s.services == nil || s.bookings == nil {
		return errors.New("mongo store is not initialized")
	}
	return nil
}
