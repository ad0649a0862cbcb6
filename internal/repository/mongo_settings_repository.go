package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/db"
)

// Ключи документов-синглтонов в коллекции settings.
const (
	pricingDocID  = "pricing"
	scheduleDocID = "weekly_schedule"
)

type pricingDoc struct {
	ID                 string    `bson:"_id"`
	BasePriceCents     int64     `bson:"base_price_cents"`
	HalfExtensionCents int64     `bson:"half_extension_cents"`
	FullExtensionCents int64     `bson:"full_extension_cents"`
	PaymentDestination string    `bson:"payment_destination"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

type scheduleDoc struct {
	ID        string              `bson:"_id"`
	Weekly    map[string][]string `bson:"weekly"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

type overrideDoc struct {
	Date        string    `bson:"_id"`
	Slots       []string  `bson:"slots"`
	Unavailable bool      `bson:"unavailable"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// MongoSettingsRepository: реализация SettingsRepository на MongoDB.
type MongoSettingsRepository struct {
	settings  *mongo.Collection
	overrides *mongo.Collection
}

func NewMongoSettingsRepository(database *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{
		settings:  database.Collection(db.SettingsCollection),
		overrides: database.Collection(db.OverridesCollection),
	}
}

func (r *MongoSettingsRepository) GetPricing(ctx context.Context) (*calendar.PricingConfig, error) {
	var doc pricingDoc
	if err := r.settings.FindOne(ctx, bson.M{"_id": pricingDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("pricing settings: %w", calendar.ErrNotFound)
		}
		return nil, fmt.Errorf("mongo find pricing: %w", err)
	}
	return &calendar.PricingConfig{
		BasePriceCents:     doc.BasePriceCents,
		HalfExtensionCents: doc.HalfExtensionCents,
		FullExtensionCents: doc.FullExtensionCents,
		PaymentDestination: doc.PaymentDestination,
	}, nil
}

func (r *MongoSettingsRepository) SavePricing(ctx context.Context, cfg calendar.PricingConfig) error {
	doc := pricingDoc{
		ID:                 pricingDocID,
		BasePriceCents:     cfg.BasePriceCents,
		HalfExtensionCents: cfg.HalfExtensionCents,
		FullExtensionCents: cfg.FullExtensionCents,
		PaymentDestination: cfg.PaymentDestination,
		UpdatedAt:          time.Now().UTC(),
	}
	_, err := r.settings.ReplaceOne(ctx, bson.M{"_id": pricingDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save pricing: %w", err)
	}
	return nil
}

func (r *MongoSettingsRepository) GetWeeklyTemplate(ctx context.Context) (calendar.WeeklyTemplate, error) {
	var doc scheduleDoc
	if err := r.settings.FindOne(ctx, bson.M{"_id": scheduleDocID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("weekly schedule: %w", calendar.ErrNotFound)
		}
		return nil, fmt.Errorf("mongo find schedule: %w", err)
	}
	return calendar.WeeklyTemplate(doc.Weekly).Normalize(), nil
}

func (r *MongoSettingsRepository) SaveWeeklyTemplate(ctx context.Context, tpl calendar.WeeklyTemplate) error {
	doc := scheduleDoc{ID: scheduleDocID, Weekly: tpl.Normalize(), UpdatedAt: time.Now().UTC()}
	_, err := r.settings.ReplaceOne(ctx, bson.M{"_id": scheduleDocID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save schedule: %w", err)
	}
	return nil
}

func (r *MongoSettingsRepository) GetOverride(ctx context.Context, date string) (*calendar.DateOverride, error) {
	var doc overrideDoc
	if err := r.overrides.FindOne(ctx, bson.M{"_id": date}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongo find override: %w", err)
	}
	o := doc.toCalendar()
	return &o, nil
}

func (d overrideDoc) toCalendar() calendar.DateOverride {
	slots := d.Slots
	if slots == nil {
		slots = []string{}
	}
	return calendar.DateOverride{Date: d.Date, Slots: slots, Unavailable: d.Unavailable}
}

func (r *MongoSettingsRepository) ListOverrides(ctx context.Context, from string) ([]calendar.DateOverride, error) {
	filter := bson.M{}
	if from != "" {
		filter["_id"] = bson.M{"$gte": from}
	}
	cur, err := r.overrides.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo find overrides: %w", err)
	}
	defer cur.Close(ctx)

	var docs []overrideDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode overrides: %w", err)
	}
	out := make([]calendar.DateOverride, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toCalendar())
	}
	return out, nil
}

func (r *MongoSettingsRepository) UpsertOverride(ctx context.Context, o calendar.DateOverride) error {
	slots := o.Slots
	if o.Unavailable || slots == nil {
		slots = []string{}
	}
	doc := overrideDoc{Date: o.Date, Slots: slots, Unavailable: o.Unavailable, UpdatedAt: time.Now().UTC()}
	_, err := r.overrides.ReplaceOne(ctx, bson.M{"_id": o.Date}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert override: %w", err)
	}
	return nil
}

func (r *MongoSettingsRepository) DeleteOverride(ctx context.Context, date string) error {
	res, err := r.overrides.DeleteOne(ctx, bson.M{"_id": date})
	if err != nil {
		return fmt.Errorf("mongo delete override: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("override %s: %w", date, calendar.ErrNotFound)
	}
	return nil
}
