package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open sqlite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: живёт в рамках одного соединения.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, model.AutoMigrate(db), "auto migrate")
	return db
}

func seedBooking(t *testing.T, repo *GormBookingRepository, date, slot string, status calendar.Status, rail calendar.Rail) *model.Booking {
	t.Helper()
	b := &model.Booking{
		ClientName:  "Ana",
		ClientEmail: "ana@example.com",
		Date:        date,
		Slot:        slot,
		Rail:        rail,
		Duration:    calendar.DurationStandard,
		PriceCents:  5000,
		Currency:    "USD",
		Status:      status,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestGormBookingRepository_CreateAndGet(t *testing.T) {
	repo := NewGormBookingRepository(newTestDB(t))
	ctx := context.Background()

	b := seedBooking(t, repo, "2024-07-29", "09:00", calendar.StatusPending, calendar.RailOnline)
	assert.NotEqual(t, uuid.Nil, b.ID)

	got, err := repo.GetByID(ctx, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Slot)
	assert.Equal(t, calendar.StatusPending, got.Status)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestGormBookingRepository_CreateRejectsUnknownStatus(t *testing.T) {
	repo := NewGormBookingRepository(newTestDB(t))
	err := repo.Create(context.Background(), &model.Booking{
		ClientName: "Ana", ClientEmail: "ana@example.com",
		Date: "2024-07-29", Slot: "09:00", Rail: calendar.RailOnline,
		Duration: calendar.DurationStandard, PriceCents: 1, Currency: "USD",
		Status: calendar.Status("expired"),
	})
	assert.Error(t, err)
}

func TestGormBookingRepository_ListOccupiedSlots(t *testing.T) {
	repo := NewGormBookingRepository(newTestDB(t))
	ctx := context.Background()

	seedBooking(t, repo, "2024-07-29", "09:00", calendar.StatusPending, calendar.RailOnline)
	seedBooking(t, repo, "2024-07-29", "10:00", calendar.StatusCancelled, calendar.RailOnline)
	seedBooking(t, repo, "2024-07-29", "11:00", calendar.StatusDeleted, calendar.RailBankTransfer)
	seedBooking(t, repo, "2024-07-29", "14:00", calendar.StatusAwaitingProof, calendar.RailBankTransfer)
	seedBooking(t, repo, "2024-07-30", "09:00", calendar.StatusConfirmed, calendar.RailOnline)

	slots, err := repo.ListOccupiedSlots(ctx, "2024-07-29", calendar.OccupyingStatuses())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"09:00", "14:00"}, slots)
}

func TestGormBookingRepository_ListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormBookingRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	for i, slot := range []string{"09:00", "10:00", "11:00"} {
		b := seedBooking(t, repo, "2024-07-29", slot, calendar.StatusPending, calendar.RailOnline)
		require.NoError(t, db.Model(&model.Booking{}).Where("id = ?", b.ID).
			UpdateColumn("created_at", base.Add(time.Duration(i)*time.Hour)).Error)
	}
	seedBooking(t, repo, "2024-07-30", "09:00", calendar.StatusConfirmed, calendar.RailOnline)

	list, total, err := repo.List(ctx, BookingFilter{Status: calendar.StatusPending, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 2)
	assert.Equal(t, "11:00", list[0].Slot)
	assert.Equal(t, "10:00", list[1].Slot)
}

func TestGormBookingRepository_ListBeforeCursor(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormBookingRepository(db)
	ctx := context.Background()

	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	for _, slot := range []string{"09:00", "10:00", "11:00"} {
		b := seedBooking(t, repo, "2024-07-29", slot, calendar.StatusPending, calendar.RailOnline)
		require.NoError(t, db.Model(&model.Booking{}).Where("id = ?", b.ID).UpdateColumn("created_at", at).Error)
	}
	older := seedBooking(t, repo, "2024-07-29", "12:00", calendar.StatusPending, calendar.RailOnline)
	require.NoError(t, db.Model(&model.Booking{}).Where("id = ?", older.ID).
		UpdateColumn("created_at", at.Add(-time.Hour)).Error)

	first, total, err := repo.List(ctx, BookingFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, first, 2)
	assert.True(t, first[0].ID.String() > first[1].ID.String(), "ties ordered by id desc")

	rest, total, err := repo.List(ctx, BookingFilter{Limit: 2, Before: CursorAfter(first[1])})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total, "cursor does not change total")
	require.Len(t, rest, 2)
	assert.True(t, at.Equal(rest[0].CreatedAt), "got %s", rest[0].CreatedAt)
	assert.Equal(t, older.ID, rest[1].ID)

	seen := map[uuid.UUID]bool{}
	for _, b := range append(first, rest...) {
		assert.False(t, seen[b.ID], "duplicate %s", b.ID)
		seen[b.ID] = true
	}
}

func TestGormBookingRepository_Transition(t *testing.T) {
	repo := NewGormBookingRepository(newTestDB(t))
	ctx := context.Background()

	b := seedBooking(t, repo, "2024-07-29", "09:00", calendar.StatusAwaitingProof, calendar.RailBankTransfer)
	now := time.Now().UTC()

	err := repo.Transition(ctx, b.ID.String(),
		[]calendar.Status{calendar.StatusAwaitingProof, calendar.StatusConfirmed},
		BookingUpdate{
			Status:      calendar.StatusConfirmed,
			ConfirmedAt: &now,
			Proof:       &Proof{Data: []byte("%PDF"), Filename: "proof.pdf", ContentType: "application/pdf"},
		})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, got.Status)
	assert.Equal(t, "proof.pdf", got.ProofFilename)
	assert.True(t, got.HasProof())
	require.NotNil(t, got.ConfirmedAt)

	// Отмена из статуса, которого уже нет.
	err = repo.Transition(ctx, b.ID.String(), []calendar.Status{calendar.StatusPending},
		BookingUpdate{Status: calendar.StatusCancelled})
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)

	// Удаление безусловное и чистит вложение.
	err = repo.Transition(ctx, b.ID.String(), nil,
		BookingUpdate{Status: calendar.StatusDeleted, RemovedAt: &now, ClearProof: true})
	require.NoError(t, err)
	got, err = repo.GetByID(ctx, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusDeleted, got.Status)
	assert.False(t, got.HasProof())

	err = repo.Transition(ctx, uuid.NewString(), nil, BookingUpdate{Status: calendar.StatusDeleted})
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestGormBookingRepository_Stats(t *testing.T) {
	repo := NewGormBookingRepository(newTestDB(t))

	seedBooking(t, repo, "2024-07-29", "09:00", calendar.StatusConfirmed, calendar.RailOnline)
	seedBooking(t, repo, "2024-07-29", "10:00", calendar.StatusConfirmed, calendar.RailBankTransfer)
	seedBooking(t, repo, "2024-07-29", "11:00", calendar.StatusPending, calendar.RailOnline)
	seedBooking(t, repo, "2024-07-29", "12:00", calendar.StatusAwaitingProof, calendar.RailBankTransfer)
	seedBooking(t, repo, "2024-07-29", "14:00", calendar.StatusCancelled, calendar.RailOnline)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Total)
	assert.EqualValues(t, 2, stats.Confirmed)
	assert.EqualValues(t, 2, stats.Open)
	assert.EqualValues(t, 1, stats.Cancelled)
	assert.EqualValues(t, 10000, stats.ConfirmedCents)
	assert.EqualValues(t, 3, stats.ByRail[calendar.RailOnline])
	assert.EqualValues(t, 2, stats.ByRail[calendar.RailBankTransfer])
}

func TestGormSettingsRepository_Pricing(t *testing.T) {
	repo := NewGormSettingsRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.GetPricing(ctx)
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)

	cfg := calendar.DefaultPricing("pay@example.com")
	require.NoError(t, repo.SavePricing(ctx, cfg))

	cfg.BasePriceCents = 6000
	require.NoError(t, repo.SavePricing(ctx, cfg))

	got, err := repo.GetPricing(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)
}

func TestGormSettingsRepository_WeeklyTemplate(t *testing.T) {
	repo := NewGormSettingsRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.GetWeeklyTemplate(ctx)
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)

	require.NoError(t, repo.SaveWeeklyTemplate(ctx, calendar.WeeklyTemplate{"monday": {"10:00"}}))
	require.NoError(t, repo.SaveWeeklyTemplate(ctx, calendar.WeeklyTemplate{"tuesday": {"11:00", "12:00"}}))

	tpl, err := repo.GetWeeklyTemplate(ctx)
	require.NoError(t, err)
	assert.Empty(t, tpl["monday"], "template is replaced wholesale")
	assert.Equal(t, []string{"11:00", "12:00"}, tpl["tuesday"])
}

func TestGormSettingsRepository_Overrides(t *testing.T) {
	repo := NewGormSettingsRepository(newTestDB(t))
	ctx := context.Background()

	got, err := repo.GetOverride(ctx, "2024-12-25")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.UpsertOverride(ctx, calendar.DateOverride{Date: "2024-12-25", Slots: []string{"10:00"}}))
	require.NoError(t, repo.UpsertOverride(ctx, calendar.DateOverride{Date: "2024-12-25", Unavailable: true}))
	require.NoError(t, repo.UpsertOverride(ctx, calendar.DateOverride{Date: "2024-12-20", Slots: []string{"16:00"}}))

	got, err = repo.GetOverride(ctx, "2024-12-25")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Unavailable)
	assert.Empty(t, got.Slots)

	list, err := repo.ListOverrides(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-12-20", list[0].Date)

	list, err = repo.ListOverrides(ctx, "2024-12-21")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.DeleteOverride(ctx, "2024-12-25"))
	err = repo.DeleteOverride(ctx, "2024-12-25")
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestGormEventRepository(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))
	ctx := context.Background()

	bookingID := uuid.New()
	require.NoError(t, repo.Create(ctx, &model.Event{EventType: model.EventTypeBookingCreated, BookingID: &bookingID, Actor: "client"}))
	require.NoError(t, repo.Create(ctx, &model.Event{EventType: model.EventTypeSettingsUpdated, Actor: "admin"}))

	events, err := repo.ListByBooking(ctx, bookingID.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeBookingCreated, events[0].EventType)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
