package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/model"
)

type eventDoc struct {
	ID        string    `bson:"_id"`
	EventType string    `bson:"event_type"`
	CreatedAt time.Time `bson:"created_at"`
	BookingID string    `bson:"booking_id,omitempty"`
	Actor     string    `bson:"actor"`
	Details   string    `bson:"details,omitempty"`
}

func (d eventDoc) toModel() model.Event {
	e := model.Event{
		EventType: model.EventType(d.EventType),
		CreatedAt: d.CreatedAt,
		Actor:     d.Actor,
		Details:   d.Details,
	}
	if id, err := uuid.Parse(d.ID); err == nil {
		e.ID = id
	}
	if bid, err := uuid.Parse(d.BookingID); err == nil {
		e.BookingID = &bid
	}
	return e
}

// MongoEventRepository: журнал аудита в MongoDB.
type MongoEventRepository struct {
	coll *mongo.Collection
}

func NewMongoEventRepository(database *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{coll: database.Collection(db.EventsCollection)}
}

func (r *MongoEventRepository) Create(ctx context.Context, event *model.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	doc := eventDoc{
		ID:        event.ID.String(),
		EventType: string(event.EventType),
		CreatedAt: event.CreatedAt,
		Actor:     event.Actor,
		Details:   event.Details,
	}
	if event.BookingID != nil {
		doc.BookingID = event.BookingID.String()
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo insert event: %w", err)
	}
	return nil
}

func (r *MongoEventRepository) ListByBooking(ctx context.Context, bookingID string) ([]model.Event, error) {
	return r.find(ctx, bson.M{"booking_id": bookingID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *MongoEventRepository) ListRecent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *MongoEventRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Event, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode events: %w", err)
	}
	events := make([]model.Event, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.toModel())
	}
	return events, nil
}
