package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/payment"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/internal/reservation"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

var (
	pngProof = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	pdfProof = []byte("%PDF-1.4\n%test proof\n")
)

// recordingNotifier запоминает подтверждённые брони.
type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) BookingConfirmed(b *model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, b.ID.String())
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ids)
}

type memoryArchive struct {
	objects map[string][]byte
	fail    bool
}

func (a *memoryArchive) PutProof(_ context.Context, bookingID, date, filename, _ string, data []byte) (string, error) {
	if a.fail {
		return "", errors.New("s3 down")
	}
	key := "proofs/v1/" + date + "/" + bookingID + "/" + filename
	a.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (a *memoryArchive) GetProof(_ context.Context, key string) ([]byte, string, error) {
	data, ok := a.objects[key]
	if !ok {
		return nil, "", calendar.ErrNotFound
	}
	return data, "image/png", nil
}

type testEnv struct {
	db       *gorm.DB
	bookings *repository.GormBookingRepository
	settings *repository.GormSettingsRepository
	events   *repository.GormEventRepository
	schedule *ScheduleService
	pricing  *SettingsService
	svc      *BookingService
	rail     *payment.FakeRail
	notifier *recordingNotifier
	archive  *memoryArchive
}

// 2024-07-28: воскресенье, следующий день понедельник.
var testNow = time.Date(2024, 7, 28, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T, locker reservation.Locker) *testEnv {
	t.Helper()
	db := newTestDB(t)
	logger := logging.Default()
	clock := calendar.FixedClock{At: testNow}

	env := &testEnv{
		db:       db,
		bookings: repository.NewGormBookingRepository(db),
		settings: repository.NewGormSettingsRepository(db),
		events:   repository.NewGormEventRepository(db),
		rail:     payment.NewFakeRail(logger),
		notifier: &recordingNotifier{},
		archive:  &memoryArchive{objects: map[string][]byte{}},
	}
	seed := calendar.WeeklyTemplate{"monday": {"09:00", "10:00"}}
	env.schedule = NewScheduleService(env.settings, env.bookings, env.events, seed, clock, logger)
	env.pricing = NewSettingsService(env.settings, env.events, calendar.DefaultPricing("pay@example.com"), "USD", logger)
	env.svc = NewBookingService(BookingDeps{
		Bookings: env.bookings,
		Events:   env.events,
		Schedule: env.schedule,
		Settings: env.pricing,
		Rail:     env.rail,
		Locker:   locker,
		Notifier: env.notifier,
		Archive:  env.archive,
		Clock:    clock,
		Logger:   logger,
	}, BookingConfig{Currency: "USD", FrontendURL: "https://book.example.com"})
	return env
}

func input(date, slot, duration string) CreateBookingInput {
	return CreateBookingInput{
		ClientName:  "Ana",
		ClientEmail: "ana@example.com",
		Date:        date,
		Slot:        slot,
		Duration:    duration,
	}
}

func TestAvailableSlots_SubtractsOccupyingBookings(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", "standard")); err != nil {
		t.Fatalf("create: %v", err)
	}

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-29")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(open) != 1 || open[0] != "10:00" {
		t.Fatalf("expected [10:00], got %v", open)
	}
}

func TestAvailableSlots_UnavailableOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.schedule.SetOverride(ctx, calendar.DateOverride{Date: "2024-12-25", Slots: []string{"09:00"}, Unavailable: true}, "admin")
	require.NoError(t, err)

	open, err := env.schedule.AvailableSlots(ctx, "2024-12-25")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = env.svc.CreateBankTransfer(ctx, input("2024-12-25", "09:00", ""))
	assert.True(t, errors.Is(err, calendar.ErrSlotUnavailable), "got %v", err)
}

func TestAvailableSlots_OverrideSlotsVerbatimAndRemoval(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 2024-08-03: суббота, по шаблону закрыта.
	open, err := env.schedule.AvailableSlots(ctx, "2024-08-03")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = env.schedule.SetOverride(ctx, calendar.DateOverride{Date: "2024-08-03", Slots: []string{"15:00", "08:30"}}, "admin")
	require.NoError(t, err)
	open, err = env.schedule.AvailableSlots(ctx, "2024-08-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"15:00", "08:30"}, open)

	require.NoError(t, env.schedule.RemoveOverride(ctx, "2024-08-03", "admin"))
	open, err = env.schedule.AvailableSlots(ctx, "2024-08-03")
	require.NoError(t, err)
	assert.Empty(t, open)

	err = env.schedule.RemoveOverride(ctx, "2024-08-03", "admin")
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestAvailableSlots_InvalidDate(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.schedule.AvailableSlots(context.Background(), "29-07-2024")
	if !errors.Is(err, calendar.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPaddedDatesAreRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", "standard"))
	require.NoError(t, err)

	for _, date := range []string{" 2024-07-29", "2024-07-29\n", "2024-07-29 "} {
		_, err := env.schedule.AvailableSlots(ctx, date)
		assert.ErrorIs(t, err, calendar.ErrInvalidInput, "available %q", date)

		_, err = env.schedule.SetOverride(ctx, calendar.DateOverride{Date: date, Unavailable: true}, "admin")
		assert.ErrorIs(t, err, calendar.ErrInvalidInput, "override %q", date)

		assert.ErrorIs(t, env.schedule.RemoveOverride(ctx, date, "admin"), calendar.ErrInvalidInput, "remove %q", date)
	}

	override, err := env.settings.GetOverride(ctx, "2024-07-29 ")
	require.NoError(t, err)
	assert.Nil(t, override)

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, open)
}

func TestCreate_ValidationHappensBeforeWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	cases := map[string]CreateBookingInput{
		"missing name": {ClientEmail: "a@example.com", Date: "2024-07-29", Slot: "09:00"},
		"bad email":    {ClientName: "A", ClientEmail: "nope", Date: "2024-07-29", Slot: "09:00"},
		"bad date":     {ClientName: "A", ClientEmail: "a@example.com", Date: "2024/07/29", Slot: "09:00"},
		"bad slot":     {ClientName: "A", ClientEmail: "a@example.com", Date: "2024-07-29", Slot: "9am"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.CreateBankTransfer(ctx, in)
			assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)
		})
	}

	_, total, err := env.bookings.List(ctx, repository.BookingFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreate_EarlierDateFollowsSchedule(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 2024-07-22: понедельник до testNow, бронь подчиняется только расписанию.
	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-22", "09:00", ""))
	require.NoError(t, err)
	assert.Equal(t, "2024-07-22", res.Booking.Date)

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-22")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, open)
}

func TestCreate_SlotNotInScheduleIsUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.CreateOnline(context.Background(), input("2024-07-29", "13:00", ""))
	assert.True(t, errors.Is(err, calendar.ErrSlotUnavailable), "got %v", err)
}

func TestCreateBankTransfer_PriceAndInstructions(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", "plus_full"))
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusAwaitingProof, res.Booking.Status)
	assert.Equal(t, int64(9500), res.AmountCents)
	assert.Equal(t, "95.00", res.Amount)
	assert.Equal(t, "pay@example.com", res.PaymentDestination)

	events, err := env.svc.History(ctx, res.Booking.ID.String())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventTypeBookingCreated, events[0].EventType)
}

func TestCreate_PriceStableAfterPricingChange(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", "plus_half"))
	require.NoError(t, err)
	require.Equal(t, int64(7500), res.Booking.PriceCents)

	_, err = env.pricing.UpdatePricing(ctx, calendar.PricingConfig{
		BasePriceCents:     10000,
		HalfExtensionCents: 1000,
		FullExtensionCents: 2000,
		PaymentDestination: "new@example.com",
	}, "admin")
	require.NoError(t, err)

	got, err := env.svc.Get(ctx, res.Booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(7500), got.PriceCents)

	cfg, err := env.pricing.PaymentConfig(ctx)
	require.NoError(t, err)
	require.Len(t, cfg.Quotes, 3)
	assert.Equal(t, "110.00", cfg.Quotes[1].Amount)
}

func TestCreateOnline_RailFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.rail.FailCreate = true

	_, err := env.svc.CreateOnline(ctx, input("2024-07-29", "09:00", ""))
	assert.True(t, errors.Is(err, calendar.ErrExternalRail), "got %v", err)

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, open)
}

func TestConfirmOnline_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateOnline(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusPending, res.Booking.Status)
	assert.Contains(t, res.ApprovalURL, "paymentId=")
	id := res.Booking.ID.String()
	paymentID := res.Booking.PaymentReference

	b, err := env.svc.ConfirmOnline(ctx, id, paymentID, "PAYER1")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, b.Status)
	assert.Equal(t, "PAYER1", b.PayerReference)
	require.NotNil(t, b.ConfirmedAt)

	again, err := env.svc.ConfirmOnline(ctx, id, paymentID, "PAYER1")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, again.Status)

	assert.Equal(t, 1, env.rail.Executions(paymentID))
	assert.Equal(t, 1, env.notifier.count())
}

func TestConfirmOnline_RailFailureLeavesPending(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateOnline(ctx, input("2024-07-29", "10:00", ""))
	require.NoError(t, err)
	env.rail.FailExecute = true

	_, err = env.svc.ConfirmOnline(ctx, res.Booking.ID.String(), res.Booking.PaymentReference, "PAYER1")
	assert.True(t, errors.Is(err, calendar.ErrExternalRail), "got %v", err)

	b, err := env.svc.Get(ctx, res.Booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusPending, b.Status)
	assert.Nil(t, b.ConfirmedAt)
	assert.Zero(t, env.notifier.count())
}

func TestConfirmOnline_WrongRailOrPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	bank, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	_, err = env.svc.ConfirmOnline(ctx, bank.Booking.ID.String(), "PAY-1", "PAYER")
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)

	online, err := env.svc.CreateOnline(ctx, input("2024-07-29", "10:00", ""))
	require.NoError(t, err)
	_, err = env.svc.ConfirmOnline(ctx, online.Booking.ID.String(), "PAY-OTHER", "PAYER")
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)
}

func TestUploadProof_ConfirmsAndReplaces(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	id := res.Booking.ID.String()

	b, err := env.svc.UploadProof(ctx, id, ProofUpload{Filename: "receipt.png", Data: pngProof})
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, b.Status)
	assert.Equal(t, "image/png", b.ProofContentType)
	assert.NotEmpty(t, b.ProofArchiveKey)
	firstConfirmed := *b.ConfirmedAt

	b, err = env.svc.UploadProof(ctx, id, ProofUpload{Filename: "receipt.pdf", Data: pdfProof})
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", b.ProofFilename)
	assert.Equal(t, "application/pdf", b.ProofContentType)
	assert.True(t, firstConfirmed.Equal(*b.ConfirmedAt))
	assert.Equal(t, 1, env.notifier.count())

	proof, err := env.svc.Proof(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, pdfProof, proof.Data)
}

func TestUploadProof_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	online, err := env.svc.CreateOnline(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	_, err = env.svc.UploadProof(ctx, online.Booking.ID.String(), ProofUpload{Filename: "p.png", Data: pngProof})
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)

	bank, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "10:00", ""))
	require.NoError(t, err)
	_, err = env.svc.UploadProof(ctx, bank.Booking.ID.String(), ProofUpload{Filename: "p.txt", Data: []byte("plain text")})
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)
	_, err = env.svc.UploadProof(ctx, bank.Booking.ID.String(), ProofUpload{Filename: "p.png"})
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)

	b, err := env.svc.Get(ctx, bank.Booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusAwaitingProof, b.Status)
}

func TestUploadProof_ArchiveFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.archive.fail = true
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	b, err := env.svc.UploadProof(ctx, res.Booking.ID.String(), ProofUpload{Filename: "p.png", Data: pngProof})
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, b.Status)
	assert.Empty(t, b.ProofArchiveKey)
}

func TestAdminConfirm(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	id := res.Booking.ID.String()

	b, err := env.svc.AdminConfirm(ctx, id, "admin")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusConfirmed, b.Status)
	assert.Equal(t, "admin", b.AdminConfirmedBy)
	require.NotNil(t, b.AdminConfirmedAt)

	_, err = env.svc.AdminConfirm(ctx, id, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, env.notifier.count())

	online, err := env.svc.CreateOnline(ctx, input("2024-07-29", "10:00", ""))
	require.NoError(t, err)
	_, err = env.svc.AdminConfirm(ctx, online.Booking.ID.String(), "admin")
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)
}

func TestCancelAndDelete_FreeSlot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	second, err := env.svc.CreateOnline(ctx, input("2024-07-29", "10:00", ""))
	require.NoError(t, err)

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-29")
	require.NoError(t, err)
	assert.Empty(t, open)

	cancelled, err := env.svc.Cancel(ctx, first.Booking.ID.String(), "admin")
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusCancelled, cancelled.Status)

	_, err = env.svc.Cancel(ctx, first.Booking.ID.String(), "admin")
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)

	require.NoError(t, env.svc.Delete(ctx, second.Booking.ID.String(), "admin"))
	require.NoError(t, env.svc.Delete(ctx, second.Booking.ID.String(), "admin"))
	require.NoError(t, env.svc.Delete(ctx, first.Booking.ID.String(), "admin"))

	open, err = env.schedule.AvailableSlots(ctx, "2024-07-29")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, open)

	_, err = env.svc.ConfirmOnline(ctx, second.Booking.ID.String(), second.Booking.PaymentReference, "PAYER")
	assert.True(t, errors.Is(err, calendar.ErrInvalidTransition), "got %v", err)
}

func TestDelete_ClearsProof(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	id := res.Booking.ID.String()
	_, err = env.svc.UploadProof(ctx, id, ProofUpload{Filename: "p.png", Data: pngProof})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, id, "admin"))

	b, err := env.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, calendar.StatusDeleted, b.Status)
	assert.False(t, b.HasProof())
	_, err = env.svc.Proof(ctx, id)
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestGet_UnknownAndMalformedID(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.svc.Get(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)
	_, err = env.svc.Get(ctx, "7d1c7a57-2f7b-4c1c-9f0e-0a8b0e3d9a11")
	assert.True(t, errors.Is(err, calendar.ErrNotFound), "got %v", err)
}

func TestStrictReservation_HeldSlotIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := reservation.NewRedisLocker(client, time.Minute)

	env := newTestEnv(t, locker)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "2024-07-29", "09:00")
	require.NoError(t, err)

	_, err = env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	assert.True(t, errors.Is(err, calendar.ErrSlotUnavailable), "got %v", err)

	release()
	_, err = env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)

	// Лок отпускается после вставки.
	assert.False(t, mr.Exists("slot_lock:2024-07-29T09:00"))
}

func TestListStatsAndExport(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	a, err := env.svc.CreateBankTransfer(ctx, input("2024-07-29", "09:00", ""))
	require.NoError(t, err)
	_, err = env.svc.CreateOnline(ctx, input("2024-07-29", "10:00", "plus_half"))
	require.NoError(t, err)
	_, err = env.svc.AdminConfirm(ctx, a.Booking.ID.String(), "admin")
	require.NoError(t, err)

	page, err := env.svc.List(ctx, ListQuery{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasNext)

	confirmed, err := env.svc.List(ctx, ListQuery{Status: "confirmed"})
	require.NoError(t, err)
	require.Len(t, confirmed.Items, 1)
	assert.Equal(t, a.Booking.ID, confirmed.Items[0].ID)

	_, err = env.svc.List(ctx, ListQuery{Status: "expired"})
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Confirmed)
	assert.Equal(t, int64(1), stats.Open)
	assert.Equal(t, int64(1), stats.ByRail[calendar.RailOnline])

	var buf bytes.Buffer
	require.NoError(t, env.svc.ExportCSV(ctx, &buf, ""))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
}

// growingBookings добавляет новую бронь сразу после первой страницы списка.
type growingBookings struct {
	repository.BookingRepository
	t     *testing.T
	calls int
}

func (g *growingBookings) List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, int64, error) {
	items, total, err := g.BookingRepository.List(ctx, f)
	g.calls++
	if g.calls == 1 {
		require.NoError(g.t, g.BookingRepository.Create(ctx, exportFixture("07:00", time.Now().Add(time.Hour))))
	}
	return items, total, err
}

func exportFixture(slot string, created time.Time) *model.Booking {
	return &model.Booking{
		ClientName:  "Ana",
		ClientEmail: "ana@example.com",
		Date:        "2024-07-29",
		Slot:        slot,
		Rail:        calendar.RailBankTransfer,
		Duration:    calendar.DurationStandard,
		PriceCents:  5000,
		Currency:    "USD",
		Status:      calendar.StatusAwaitingProof,
		CreatedAt:   created,
	}
}

func TestExportCSV_InsertsDuringExportDoNotDuplicateRows(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	prev := exportBatchSize
	exportBatchSize = 2
	t.Cleanup(func() { exportBatchSize = prev })

	base := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	// Две брони с одинаковым created_at попадают на границу первой страницы.
	offsets := []time.Duration{0, time.Minute, 3 * time.Minute, 3 * time.Minute, 4 * time.Minute}
	slots := []string{"08:00", "09:00", "10:00", "11:00", "12:00"}
	for i, off := range offsets {
		require.NoError(t, env.bookings.Create(ctx, exportFixture(slots[i], base.Add(off))))
	}

	growing := &growingBookings{BookingRepository: env.bookings, t: t}
	svc := NewBookingService(BookingDeps{
		Bookings: growing,
		Events:   env.events,
		Schedule: env.schedule,
		Settings: env.pricing,
		Clock:    calendar.FixedClock{At: testNow},
	}, BookingConfig{Currency: "USD"})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, &buf, ""))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 1+len(offsets))
	seen := map[string]bool{}
	var exported []string
	for _, row := range rows[1:] {
		assert.False(t, seen[row[0]], "duplicate row %s", row[0])
		seen[row[0]] = true
		exported = append(exported, row[6])
	}
	assert.ElementsMatch(t, slots, exported)
	assert.Greater(t, growing.calls, 2)
}

func TestScheduleService_SeedsAndUpdatesTemplate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tpl, err := env.schedule.WeeklyTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, tpl["monday"])

	_, err = env.schedule.UpdateWeeklyTemplate(ctx, calendar.WeeklyTemplate{"monday": {"09:00", "09:00"}}, "admin")
	assert.True(t, errors.Is(err, calendar.ErrInvalidInput), "got %v", err)

	_, err = env.schedule.UpdateWeeklyTemplate(ctx, calendar.WeeklyTemplate{"tuesday": {"11:00"}}, "admin")
	require.NoError(t, err)

	open, err := env.schedule.AvailableSlots(ctx, "2024-07-30")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00"}, open)
	open, err = env.schedule.AvailableSlots(ctx, "2024-07-29")
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = env.schedule.SetOverride(ctx, calendar.DateOverride{Date: "2024-08-01", Slots: []string{"12:00"}}, "admin")
	require.NoError(t, err)
	_, err = env.schedule.SetOverride(ctx, calendar.DateOverride{Date: "2024-07-01", Unavailable: true}, "admin")
	require.NoError(t, err)

	view, err := env.schedule.View(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, view.Overrides.Items, 1)
	assert.Equal(t, "2024-08-01", view.Overrides.Items[0].Date)
}
