package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// BookingFilter: параметры выборки списка бронирований.
type BookingFilter struct {
	Status calendar.Status // пусто: любые
	Date   string          // пусто: любые
	Limit  int
	Offset int
	// Before отдаёт только записи строго после курсора в порядке выдачи.
	// На total не влияет.
	Before *ListCursor
}

// ListCursor: позиция в выдаче created_at DESC, id DESC.
type ListCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the cursor positioned at b.
func CursorAfter(b model.Booking) *ListCursor {
	return &ListCursor{CreatedAt: b.CreatedAt.UTC(), ID: b.ID}
}

// Proof: загруженное подтверждение перевода.
type Proof struct {
	Data        []byte
	Filename    string
	ContentType string
}

// BookingUpdate описывает изменения при переходе статуса. nil-поля не трогаются.
type BookingUpdate struct {
	Status           calendar.Status
	PayerReference   *string
	ConfirmedAt      *time.Time
	AdminConfirmedAt *time.Time
	AdminConfirmedBy *string
	CancelledAt      *time.Time
	RemovedAt        *time.Time
	Proof            *Proof
	ProofArchiveKey  *string
	ClearProof       bool
}

func (u BookingUpdate) columns() map[string]any {
	update := map[string]any{
		"status": u.Status,
	}
	if u.PayerReference != nil {
		update["payer_reference"] = *u.PayerReference
	}
	if u.ConfirmedAt != nil {
		update["confirmed_at"] = *u.ConfirmedAt
	}
	if u.AdminConfirmedAt != nil {
		update["admin_confirmed_at"] = *u.AdminConfirmedAt
	}
	if u.AdminConfirmedBy != nil {
		update["admin_confirmed_by"] = *u.AdminConfirmedBy
	}
	if u.CancelledAt != nil {
		update["cancelled_at"] = *u.CancelledAt
	}
	if u.RemovedAt != nil {
		update["removed_at"] = *u.RemovedAt
	}
	if u.Proof != nil {
		update["proof_data"] = u.Proof.Data
		update["proof_filename"] = u.Proof.Filename
		update["proof_content_type"] = u.Proof.ContentType
	}
	if u.ProofArchiveKey != nil {
		update["proof_archive_key"] = *u.ProofArchiveKey
	}
	if u.ClearProof {
		update["proof_data"] = nil
		update["proof_archive_key"] = ""
	}
	return update
}

// BookingStats: агрегаты для админской панели.
type BookingStats struct {
	Total          int64                   `json:"total"`
	Confirmed      int64                   `json:"confirmed"`
	Open           int64                   `json:"open"`
	Cancelled      int64                   `json:"cancelled"`
	Deleted        int64                   `json:"deleted"`
	ByRail         map[calendar.Rail]int64 `json:"by_rail"`
	ConfirmedCents int64                   `json:"confirmed_cents"`
}

func (s *BookingStats) add(status calendar.Status, rail calendar.Rail, count, cents int64) {
	if s.ByRail == nil {
		s.ByRail = map[calendar.Rail]int64{}
	}
	s.Total += count
	s.ByRail[rail] += count
	switch status {
	case calendar.StatusConfirmed:
		s.Confirmed += count
		s.ConfirmedCents += cents
	case calendar.StatusPending, calendar.StatusAwaitingProof:
		s.Open += count
	case calendar.StatusCancelled:
		s.Cancelled += count
	case calendar.StatusDeleted:
		s.Deleted += count
	}
}

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// Метки слотов на дату, занятые бронированиями с указанными статусами.
	ListOccupiedSlots(ctx context.Context, date string, statuses []calendar.Status) ([]string, error)
	// Список бронирований (новые сверху) с пагинацией.
	List(ctx context.Context, filter BookingFilter) ([]model.Booking, int64, error)
	// Перевести бронирование в новый статус, если текущий входит в from (nil: любой).
	Transition(ctx context.Context, id string, from []calendar.Status, upd BookingUpdate) error
	// Агрегаты по статусам и способам оплаты.
	Stats(ctx context.Context) (BookingStats, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("booking %s: %w", id, calendar.ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) ListOccupiedSlots(
	ctx context.Context,
	date string,
	statuses []calendar.Status,
) ([]string, error) {
	var slots []string
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("date = ?", date).
		Where("status IN ?", statuses).
		Pluck("slot", &slots).
		Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormBookingRepository) List(ctx context.Context, filter BookingFilter) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).Model(&model.Booking{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Date != "" {
		q = q.Where("date = ?", filter.Date)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if c := filter.Before; c != nil {
		at := c.CreatedAt.UTC()
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, c.ID.String())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	// Бинарные вложения в списке не нужны.
	if err := q.Omit("proof_data").Order("created_at DESC, id DESC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

func (r *GormBookingRepository) Transition(
	ctx context.Context,
	id string,
	from []calendar.Status,
	upd BookingUpdate,
) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("booking %s: invalid target status %q", id, upd.Status)
	}

	q := r.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(upd.columns())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Ничего не обновили: либо записи нет, либо статус уже сменился.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: booking %s is %s", calendar.ErrInvalidTransition, id, current.Status)
}

func (r *GormBookingRepository) Stats(ctx context.Context) (BookingStats, error) {
	var rows []struct {
		Status calendar.Status
		Rail   calendar.Rail
		Count  int64
		Cents  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("status, rail, COUNT(*) AS count, COALESCE(SUM(price_cents), 0) AS cents").
		Group("status, rail").
		Scan(&rows).
		Error
	if err != nil {
		return BookingStats{}, err
	}

	stats := BookingStats{ByRail: map[calendar.Rail]int64{}}
	for _, row := range rows {
		stats.add(row.Status, row.Rail, row.Count, row.Cents)
	}
	return stats, nil
}
