package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Leganyst/consultation-booking/internal/config"
)

// Имена коллекций MongoDB.
const (
	BookingsCollection  = "bookings"
	SettingsCollection  = "settings"
	OverridesCollection = "date_overrides"
	EventsCollection    = "events"
)

// NewMongoDB подключается к MongoDB, проверяет соединение и создаёт индексы.
func NewMongoDB(ctx context.Context, cfg *config.DBConfig) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	database := client.Database(cfg.MongoDatabase)
	if err := EnsureMongoIndexes(connectCtx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, database, nil
}

// EnsureMongoIndexes создаёт индексы, которые в SQL даёт AutoMigrate.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	bookingIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "payment_reference", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	if _, err := database.Collection(BookingsCollection).Indexes().CreateMany(ctx, bookingIdx); err != nil {
		return fmt.Errorf("mongo indexes %s: %w", BookingsCollection, err)
	}

	eventIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	if _, err := database.Collection(EventsCollection).Indexes().CreateMany(ctx, eventIdx); err != nil {
		return fmt.Errorf("mongo indexes %s: %w", EventsCollection, err)
	}
	return nil
}
