package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Leganyst/consultation-booking/internal/archive"
	"github.com/Leganyst/consultation-booking/internal/auth"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/config"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/grpcapi"
	"github.com/Leganyst/consultation-booking/internal/httpapi"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/notify"
	"github.com/Leganyst/consultation-booking/internal/payment"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/internal/reservation"
	"github.com/Leganyst/consultation-booking/internal/service"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

type repositories struct {
	bookings repository.BookingRepository
	settings repository.SettingsRepository
	events   repository.EventRepository
	close    func()
}

func main() {
	// 1. Загружаем конфиг из env (и .env, если он есть).
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Часовой пояс провайдера и стартовый шаблон расписания.
	clock, err := calendar.NewProviderClock(cfg.ProviderTimezone)
	if err != nil {
		return err
	}
	seed, err := config.LoadScheduleSeed(cfg.ScheduleSeedFile)
	if err != nil {
		return err
	}

	// 3. Хранилище: GORM (postgres/sqlite) или MongoDB.
	repos, err := openRepositories(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	// 4. Метрики.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	// 5. AWS нужен только для SES и архива подтверждений.
	var (
		s3Client  *s3.Client
		sesClient *sesv2.Client
	)
	if cfg.EmailProvider == "ses" || cfg.ProofArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return err
		}
		if cfg.EmailProvider == "ses" {
			sesClient = sesv2.NewFromConfig(awsCfg)
		}
		if cfg.ProofArchiveBucket != "" {
			s3Client = s3.NewFromConfig(awsCfg)
		}
	}

	// 6. Уведомления.
	notifier := notify.NewService(emailSender(cfg, sesClient, logger), notify.Config{
		ProviderEmail: cfg.ProviderEmail,
		Timeout:       cfg.NotifyTimeout,
	}, bookingMetrics, logger)

	var proofArchive service.ProofArchive
	if s3Client != nil {
		proofArchive = archive.NewStore(s3Client, cfg.ProofArchiveBucket, logger)
		logger.Info("proof archive enabled", "bucket", cfg.ProofArchiveBucket)
	}

	// 7. Блокировка слотов (STRICT_SLOT_RESERVATION).
	var locker reservation.Locker = reservation.NoopLocker{}
	if cfg.StrictSlotReservation {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		defer rdb.Close()
		locker = reservation.NewRedisLocker(rdb, cfg.ReservationTTL)
		logger.Info("strict slot reservation enabled", "redis_addr", cfg.RedisAddr)
	}

	// 8. Онлайн-оплата.
	var rail payment.Rail
	switch {
	case cfg.PayPalConfigured():
		rail = payment.NewPayPalClient(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode, logger)
		logger.Info("paypal rail enabled", "mode", cfg.PayPalMode)
	case cfg.AllowFakePayments:
		rail = payment.NewFakeRail(logger)
		logger.Warn("fake payment rail enabled")
	default:
		logger.Warn("online payments disabled: PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET not set")
	}

	// 9. Сервисы.
	scheduleSvc := service.NewScheduleService(repos.settings, repos.bookings, repos.events, seed, clock, logger)
	settingsSvc := service.NewSettingsService(repos.settings, repos.events,
		calendar.DefaultPricing(cfg.PaymentDestinationEmail), cfg.Currency, logger)
	bookingSvc := service.NewBookingService(service.BookingDeps{
		Bookings: repos.bookings,
		Events:   repos.events,
		Schedule: scheduleSvc,
		Settings: settingsSvc,
		Rail:     rail,
		Locker:   locker,
		Notifier: notifier,
		Archive:  proofArchive,
		Metrics:  bookingMetrics,
		Clock:    clock,
		Logger:   logger,
	}, service.BookingConfig{
		Currency:    cfg.Currency,
		FrontendURL: cfg.FrontendURL,
	})

	// 10. HTTP API.
	admin := auth.NewAdmin(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminJWTSecret, cfg.AdminTokenTTL)
	if !admin.Enabled() {
		logger.Warn("admin API disabled: ADMIN_USERNAME/ADMIN_PASSWORD_HASH/ADMIN_JWT_SECRET not set")
	}
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:            httpapi.NewHandler(bookingSvc, scheduleSvc, settingsSvc, admin, bookingMetrics, logger),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PublicRateLimit:    cfg.PublicRateLimit,
		PublicRateBurst:    cfg.PublicRateBurst,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 11. gRPC-сервер календаря.
	grpcServer, healthSrv := grpcapi.NewServer(
		grpcapi.NewCalendarService(scheduleSvc, settingsSvc, bookingSvc, bookingMetrics, logger), logger)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	// 12. Запускаем оба сервера.
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	// 13. Грейсфул-шатдаун.
	logger.Info("shutting down")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	notifier.Wait()
	return serveErr
}

func openRepositories(ctx context.Context, dbCfg *config.DBConfig, logger *logging.Logger) (*repositories, error) {
	if dbCfg.Driver == config.DriverMongo {
		client, database, err := db.NewMongoDB(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", "driver", dbCfg.Driver, "database", dbCfg.MongoDatabase)
		return &repositories{
			bookings: repository.NewMongoBookingRepository(database),
			settings: repository.NewMongoSettingsRepository(database),
			events:   repository.NewMongoEventRepository(database),
			close: func() {
				_ = client.Disconnect(context.Background())
			},
		}, nil
	}

	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	logger.Info("storage ready", "driver", dbCfg.Driver)
	return &repositories{
		bookings: repository.NewGormBookingRepository(gormDB),
		settings: repository.NewGormSettingsRepository(gormDB),
		events:   repository.NewGormEventRepository(gormDB),
		close: func() {
			_ = sqlDB.Close()
		},
	}, nil
}

func emailSender(cfg *config.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
		}, logger); s != nil {
			return s
		}
		logger.Warn("SENDGRID_API_KEY not set, falling back to stub email sender")
	case "ses":
		if sesClient != nil {
			return notify.NewSESSender(sesClient, notify.SESConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}, logger)
		}
	}
	return notify.NewStubEmailSender(logger)
}
