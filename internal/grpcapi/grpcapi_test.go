package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/internal/service"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

type testServer struct {
	conn     *grpc.ClientConn
	bookings *service.BookingService
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, model.AutoMigrate(db))

	logger := logging.Default()
	clock := calendar.FixedClock{At: time.Date(2024, 7, 28, 12, 0, 0, 0, time.UTC)}
	bookingRepo := repository.NewGormBookingRepository(db)
	settingsRepo := repository.NewGormSettingsRepository(db)
	eventRepo := repository.NewGormEventRepository(db)

	schedule := service.NewScheduleService(settingsRepo, bookingRepo, eventRepo,
		calendar.WeeklyTemplate{"monday": {"09:00", "10:00"}}, clock, logger)
	settings := service.NewSettingsService(settingsRepo, eventRepo, calendar.DefaultPricing("pay@example.com"), "USD", logger)
	bookings := service.NewBookingService(service.BookingDeps{
		Bookings: bookingRepo,
		Events:   eventRepo,
		Schedule: schedule,
		Settings: settings,
		Clock:    clock,
		Logger:   logger,
	}, service.BookingConfig{Currency: "USD"})

	srv, _ := NewServer(NewCalendarService(schedule, settings, bookings, nil, logger), logger)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testServer{conn: conn, bookings: bookings}
}

func TestCalendar_ListAvailableSlots(t *testing.T) {
	ts := startServer(t)
	client := NewCalendarClient(ts.conn)
	ctx := context.Background()

	_, err := ts.bookings.CreateBankTransfer(ctx, service.CreateBookingInput{
		ClientName: "Ana", ClientEmail: "ana@example.com", Date: "2024-07-29", Slot: "10:00",
	})
	require.NoError(t, err)

	resp, err := client.ListAvailableSlots(ctx, &ListAvailableSlotsRequest{Date: "2024-07-29"})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00"}, resp.Slots)

	_, err = client.ListAvailableSlots(ctx, &ListAvailableSlotsRequest{Date: "2024-13-40"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCalendar_GetPricing(t *testing.T) {
	ts := startServer(t)
	resp, err := NewCalendarClient(ts.conn).GetPricing(context.Background(), &GetPricingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, int64(5000), resp.BasePriceCents)
	require.Len(t, resp.Quotes, 3)
	assert.Equal(t, "95.00", resp.Quotes[2].Amount)
}

func TestCalendar_GetBooking(t *testing.T) {
	ts := startServer(t)
	client := NewCalendarClient(ts.conn)
	ctx := context.Background()

	created, err := ts.bookings.CreateBankTransfer(ctx, service.CreateBookingInput{
		ClientName: "Ana", ClientEmail: "ana@example.com", Date: "2024-07-29", Slot: "09:00", Duration: "plus_half",
	})
	require.NoError(t, err)

	got, err := client.GetBooking(ctx, &GetBookingRequest{ID: created.Booking.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "awaiting_proof", got.Status)
	assert.Equal(t, int64(7500), got.PriceCents)
	require.NotNil(t, got.CreatedAt)
	assert.WithinDuration(t, created.Booking.CreatedAt, got.CreatedAt.AsTime(), time.Millisecond)
	assert.Nil(t, got.ConfirmedAt)

	_, err = client.GetBooking(ctx, &GetBookingRequest{ID: "7d1c7a57-2f7b-4c1c-9f0e-0a8b0e3d9a11"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetBooking(ctx, &GetBookingRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealth(t *testing.T) {
	ts := startServer(t)
	resp, err := healthpb.NewHealthClient(ts.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestToStatus(t *testing.T) {
	s := NewCalendarService(nil, nil, nil, nil, nil)
	assert.Equal(t, codes.Unavailable, status.Code(s.toStatus(calendar.ErrExternalRail)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(s.toStatus(calendar.ErrInvalidTransition)))
	assert.Equal(t, codes.AlreadyExists, status.Code(s.toStatus(calendar.ErrSlotUnavailable)))
	assert.Equal(t, codes.Internal, status.Code(s.toStatus(context.DeadlineExceeded)))
}
