package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// bookingDoc: представление Booking в MongoDB (id хранится строкой в _id).
type bookingDoc struct {
	ID               string     `bson:"_id"`
	ClientName       string     `bson:"client_name"`
	ClientEmail      string     `bson:"client_email"`
	ClientContact    string     `bson:"client_contact,omitempty"`
	Date             string     `bson:"date"`
	Slot             string     `bson:"slot"`
	Rail             string     `bson:"rail"`
	Duration         string     `bson:"duration"`
	PriceCents       int64      `bson:"price_cents"`
	Currency         string     `bson:"currency"`
	Status           string     `bson:"status"`
	PaymentReference string     `bson:"payment_reference,omitempty"`
	PayerReference   string     `bson:"payer_reference,omitempty"`
	ProofData        []byte     `bson:"proof_data,omitempty"`
	ProofFilename    string     `bson:"proof_filename,omitempty"`
	ProofContentType string     `bson:"proof_content_type,omitempty"`
	ProofArchiveKey  string     `bson:"proof_archive_key,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
	ConfirmedAt      *time.Time `bson:"confirmed_at,omitempty"`
	AdminConfirmedAt *time.Time `bson:"admin_confirmed_at,omitempty"`
	AdminConfirmedBy string     `bson:"admin_confirmed_by,omitempty"`
	CancelledAt      *time.Time `bson:"cancelled_at,omitempty"`
	RemovedAt        *time.Time `bson:"removed_at,omitempty"`
}

func toBookingDoc(b *model.Booking) bookingDoc {
	return bookingDoc{
		ID:               b.ID.String(),
		ClientName:       b.ClientName,
		ClientEmail:      b.ClientEmail,
		ClientContact:    b.ClientContact,
		Date:             b.Date,
		Slot:             b.Slot,
		Rail:             string(b.Rail),
		Duration:         string(b.Duration),
		PriceCents:       b.PriceCents,
		Currency:         b.Currency,
		Status:           string(b.Status),
		PaymentReference: b.PaymentReference,
		PayerReference:   b.PayerReference,
		ProofData:        b.ProofData,
		ProofFilename:    b.ProofFilename,
		ProofContentType: b.ProofContentType,
		ProofArchiveKey:  b.ProofArchiveKey,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		ConfirmedAt:      b.ConfirmedAt,
		AdminConfirmedAt: b.AdminConfirmedAt,
		AdminConfirmedBy: b.AdminConfirmedBy,
		CancelledAt:      b.CancelledAt,
		RemovedAt:        b.RemovedAt,
	}
}

func (d bookingDoc) toModel() (*model.Booking, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("booking doc %q: %w", d.ID, err)
	}
	return &model.Booking{
		ID:               id,
		ClientName:       d.ClientName,
		ClientEmail:      d.ClientEmail,
		ClientContact:    d.ClientContact,
		Date:             d.Date,
		Slot:             d.Slot,
		Rail:             calendar.Rail(d.Rail),
		Duration:         calendar.DurationSelector(d.Duration),
		PriceCents:       d.PriceCents,
		Currency:         d.Currency,
		Status:           calendar.Status(d.Status),
		PaymentReference: d.PaymentReference,
		PayerReference:   d.PayerReference,
		ProofData:        d.ProofData,
		ProofFilename:    d.ProofFilename,
		ProofContentType: d.ProofContentType,
		ProofArchiveKey:  d.ProofArchiveKey,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		ConfirmedAt:      d.ConfirmedAt,
		AdminConfirmedAt: d.AdminConfirmedAt,
		AdminConfirmedBy: d.AdminConfirmedBy,
		CancelledAt:      d.CancelledAt,
		RemovedAt:        d.RemovedAt,
	}, nil
}

// MongoBookingRepository: реализация BookingRepository на MongoDB.
type MongoBookingRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoBookingRepository(database *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{
		coll: database.Collection(db.BookingsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func statusStrings(statuses []calendar.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *MongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	if !booking.Status.Valid() {
		return fmt.Errorf("booking: invalid status %q", booking.Status)
	}
	now := r.now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toBookingDoc(booking)); err != nil {
		return fmt.Errorf("mongo insert booking: %w", err)
	}
	return nil
}

func (r *MongoBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var doc bookingDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("booking %s: %w", id, calendar.ErrNotFound)
		}
		return nil, fmt.Errorf("mongo find booking: %w", err)
	}
	return doc.toModel()
}

func (r *MongoBookingRepository) ListOccupiedSlots(
	ctx context.Context,
	date string,
	statuses []calendar.Status,
) ([]string, error) {
	filter := bson.M{"date": date, "status": bson.M{"$in": statusStrings(statuses)}}
	opts := options.Find().SetProjection(bson.M{"slot": 1})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find occupied: %w", err)
	}
	defer cur.Close(ctx)

	var slots []string
	for cur.Next(ctx) {
		var row struct {
			Slot string `bson:"slot"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("mongo decode occupied: %w", err)
		}
		slots = append(slots, row.Slot)
	}
	return slots, cur.Err()
}

func (r *MongoBookingRepository) List(ctx context.Context, filter BookingFilter) ([]model.Booking, int64, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.Date != "" {
		q["date"] = filter.Date
	}

	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo count bookings: %w", err)
	}

	if c := filter.Before; c != nil {
		at := c.CreatedAt.UTC()
		q["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$lt": at}},
			bson.M{"created_at": at, "_id": bson.M{"$lt": c.ID.String()}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.M{"proof_data": 0})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit)).SetSkip(int64(filter.Offset))
	}

	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo find bookings: %w", err)
	}
	defer cur.Close(ctx)

	var docs []bookingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("mongo decode bookings: %w", err)
	}
	bookings := make([]model.Booking, 0, len(docs))
	for _, d := range docs {
		b, err := d.toModel()
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, total, nil
}

func (r *MongoBookingRepository) Transition(
	ctx context.Context,
	id string,
	from []calendar.Status,
	upd BookingUpdate,
) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("booking %s: invalid target status %q", id, upd.Status)
	}

	set := bson.M{"updated_at": r.now()}
	unset := bson.M{}
	for col, v := range upd.columns() {
		if v == nil {
			unset[col] = ""
			continue
		}
		if s, ok := v.(calendar.Status); ok {
			v = string(s)
		}
		set[col] = v
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(from)}
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongo update booking: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: booking %s is %s", calendar.ErrInvalidTransition, id, current.Status)
}

func (r *MongoBookingRepository) Stats(ctx context.Context) (BookingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"status": "$status", "rail": "$rail"},
			"count": bson.M{"$sum": 1},
			"cents": bson.M{"$sum": "$price_cents"},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return BookingStats{}, fmt.Errorf("mongo aggregate stats: %w", err)
	}
	defer cur.Close(ctx)

	stats := BookingStats{ByRail: map[calendar.Rail]int64{}}
	for cur.Next(ctx) {
		var row struct {
			ID struct {
				Status string `bson:"status"`
				Rail   string `bson:"rail"`
			} `bson:"_id"`
			Count int64 `bson:"count"`
			Cents int64 `bson:"cents"`
		}
		if err := cur.Decode(&row); err != nil {
			return BookingStats{}, fmt.Errorf("mongo decode stats: %w", err)
		}
		stats.add(calendar.Status(row.ID.Status), calendar.Rail(row.ID.Rail), row.Count, row.Cents)
	}
	return stats, cur.Err()
}
