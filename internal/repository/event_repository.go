package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/model"
)

// EventRepository: журнал аудита.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	ListByBooking(ctx context.Context, bookingID string) ([]model.Event, error)
	ListRecent(ctx context.Context, limit int) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID string) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormEventRepository) ListRecent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []model.Event
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

var (
	_ BookingRepository  = (*GormBookingRepository)(nil)
	_ BookingRepository  = (*MongoBookingRepository)(nil)
	_ SettingsRepository = (*GormSettingsRepository)(nil)
	_ SettingsRepository = (*MongoSettingsRepository)(nil)
	_ EventRepository    = (*GormEventRepository)(nil)
	_ EventRepository    = (*MongoEventRepository)(nil)
)
