package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/payment"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/internal/reservation"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// DefaultMaxProofBytes ограничивает размер загружаемого подтверждения.
const DefaultMaxProofBytes = 10 << 20

// Notifier получает подтверждённые бронирования; доставка асинхронная.
type Notifier interface {
	BookingConfirmed(b *model.Booking)
}

// ProofArchive mirrors proofs to long-term storage. *archive.Store implements it.
type ProofArchive interface {
	PutProof(ctx context.Context, bookingID, date, filename, contentType string, data []byte) (string, error)
	GetProof(ctx context.Context, key string) ([]byte, string, error)
}

// BookingConfig: параметры сервиса бронирований.
type BookingConfig struct {
	Currency      string
	FrontendURL   string
	MaxProofBytes int
}

// BookingService implements the booking lifecycle for both rails.
type BookingService struct {
	bookings repository.BookingRepository
	schedule *ScheduleService
	settings *SettingsService
	rail     payment.Rail
	locker   reservation.Locker
	notifier Notifier
	archive  ProofArchive
	metrics  *metrics.BookingMetrics
	audit    auditor
	clock    calendar.Clock
	cfg      BookingConfig
	logger   *logging.Logger
}

// BookingDeps collects the collaborators of BookingService. Nil optional
// fields fall back to no-ops.
type BookingDeps struct {
	Bookings repository.BookingRepository
	Events   repository.EventRepository
	Schedule *ScheduleService
	Settings *SettingsService
	Rail     payment.Rail
	Locker   reservation.Locker
	Notifier Notifier
	Archive  ProofArchive
	Metrics  *metrics.BookingMetrics
	Clock    calendar.Clock
	Logger   *logging.Logger
}

func NewBookingService(deps BookingDeps, cfg BookingConfig) *BookingService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = reservation.NoopLocker{}
	}
	if cfg.MaxProofBytes <= 0 {
		cfg.MaxProofBytes = DefaultMaxProofBytes
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &BookingService{
		bookings: deps.Bookings,
		schedule: deps.Schedule,
		settings: deps.Settings,
		rail:     deps.Rail,
		locker:   locker,
		notifier: deps.Notifier,
		archive:  deps.Archive,
		metrics:  deps.Metrics,
		audit:    auditor{events: deps.Events, logger: logger},
		clock:    deps.Clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateBookingInput: данные формы бронирования.
type CreateBookingInput struct {
	ClientName    string `json:"name"`
	ClientEmail   string `json:"email"`
	ClientContact string `json:"contact"`
	Date          string `json:"date"`
	Slot          string `json:"slot"`
	Duration      string `json:"duration"`
}

// OnlineBooking is a pending booking plus where to send the client to pay.
type OnlineBooking struct {
	Booking     *model.Booking `json:"booking"`
	ApprovalURL string         `json:"approval_url"`
}

// BankTransferBooking is an awaiting_proof booking plus transfer instructions.
type BankTransferBooking struct {
	Booking            *model.Booking `json:"booking"`
	PaymentDestination string         `json:"payment_destination"`
	AmountCents        int64          `json:"amount_cents"`
	Amount             string         `json:"amount"`
	Currency           string         `json:"currency"`
}

func (s *BookingService) validateInput(in *CreateBookingInput) error {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.ClientEmail = strings.TrimSpace(in.ClientEmail)
	in.ClientContact = strings.TrimSpace(in.ClientContact)
	in.Date = strings.TrimSpace(in.Date)
	in.Slot = strings.TrimSpace(in.Slot)

	if in.ClientName == "" {
		return fmt.Errorf("%w: name is required", calendar.ErrInvalidInput)
	}
	if err := calendar.ValidateEmail(in.ClientEmail); err != nil {
		return err
	}
	if _, err := calendar.ParseDate(in.Date); err != nil {
		return err
	}
	return calendar.ValidateSlotLabel(in.Slot)
}

// create runs the shared part of both create flows: validation, the slot
// re-check under the reservation lock, pricing and the insert. prepare runs
// after the booking is priced and before it is written; an error there
// aborts the create.
func (s *BookingService) create(
	ctx context.Context,
	rail calendar.Rail,
	in CreateBookingInput,
	prepare func(ctx context.Context, b *model.Booking) error,
) (*model.Booking, calendar.PricingConfig, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(attribute.String("rail", string(rail)))

	if err := s.validateInput(&in); err != nil {
		return nil, calendar.PricingConfig{}, err
	}
	span.SetAttributes(attribute.String("date", in.Date), attribute.String("slot", in.Slot))

	release, err := s.locker.Acquire(ctx, in.Date, in.Slot)
	if err != nil {
		if errors.Is(err, reservation.ErrHeld) {
			return nil, calendar.PricingConfig{}, fmt.Errorf("%w: %s %s is being booked", calendar.ErrSlotUnavailable, in.Date, in.Slot)
		}
		span.RecordError(err)
		return nil, calendar.PricingConfig{}, fmt.Errorf("acquire slot lock: %w", err)
	}
	defer release()

	open, err := s.schedule.AvailableSlots(ctx, in.Date)
	if err != nil {
		span.RecordError(err)
		return nil, calendar.PricingConfig{}, err
	}
	if !calendar.ContainsSlot(open, in.Slot) {
		return nil, calendar.PricingConfig{}, fmt.Errorf("%w: %s %s", calendar.ErrSlotUnavailable, in.Date, in.Slot)
	}

	pricing, err := s.settings.Pricing(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, calendar.PricingConfig{}, err
	}
	duration := calendar.NormalizeDuration(in.Duration)

	booking := &model.Booking{
		ID:            uuid.New(),
		ClientName:    in.ClientName,
		ClientEmail:   in.ClientEmail,
		ClientContact: in.ClientContact,
		Date:          in.Date,
		Slot:          in.Slot,
		Rail:          rail,
		Duration:      duration,
		PriceCents:    calendar.Price(duration, pricing),
		Currency:      s.cfg.Currency,
		Status:        rail.InitialStatus(),
	}

	if prepare != nil {
		if err := prepare(ctx, booking); err != nil {
			span.RecordError(err)
			return nil, calendar.PricingConfig{}, err
		}
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		span.RecordError(err)
		return nil, calendar.PricingConfig{}, fmt.Errorf("create booking: %w", err)
	}

	s.metrics.ObserveCreated(string(rail))
	s.audit.record(ctx, model.EventTypeBookingCreated, &booking.ID, ActorClient, map[string]any{
		"rail": rail, "date": booking.Date, "slot": booking.Slot, "price_cents": booking.PriceCents,
	})
	s.logger.Info("booking created",
		"booking_id", booking.ID.String(),
		"rail", string(rail),
		"date", booking.Date,
		"slot", booking.Slot,
		"price_cents", booking.PriceCents,
	)
	return booking, pricing, nil
}

// CreateOnline creates a pending booking and a payment on the online rail.
// If the rail fails, nothing is stored.
func (s *BookingService) CreateOnline(ctx context.Context, in CreateBookingInput) (*OnlineBooking, error) {
	if s.rail == nil {
		return nil, fmt.Errorf("%w: online payments are not configured", calendar.ErrExternalRail)
	}
	var approvalURL string
	booking, _, err := s.create(ctx, calendar.RailOnline, in, func(ctx context.Context, b *model.Booking) error {
		p, err := s.rail.CreatePayment(ctx, payment.CreateRequest{
			BookingID:   b.ID,
			AmountCents: b.PriceCents,
			Currency:    b.Currency,
			Description: fmt.Sprintf("Consultation %s %s", b.Date, b.Slot),
			ReturnURL:   s.frontendURL("/booking/success", b.ID),
			CancelURL:   s.frontendURL("/booking/cancel", b.ID),
		})
		s.metrics.ObserveRailCall("create", err)
		if err != nil {
			return err
		}
		b.PaymentReference = p.ID
		approvalURL = p.ApprovalURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OnlineBooking{Booking: booking, ApprovalURL: approvalURL}, nil
}

// CreateBankTransfer creates an awaiting_proof booking and returns transfer instructions.
func (s *BookingService) CreateBankTransfer(ctx context.Context, in CreateBookingInput) (*BankTransferBooking, error) {
	booking, pricing, err := s.create(ctx, calendar.RailBankTransfer, in, nil)
	if err != nil {
		return nil, err
	}
	return &BankTransferBooking{
		Booking:            booking,
		PaymentDestination: pricing.PaymentDestination,
		AmountCents:        booking.PriceCents,
		Amount:             calendar.FormatCents(booking.PriceCents),
		Currency:           booking.Currency,
	}, nil
}

func (s *BookingService) frontendURL(path string, id uuid.UUID) string {
	base := strings.TrimRight(s.cfg.FrontendURL, "/")
	return base + path + "?booking_id=" + url.QueryEscape(id.String())
}

// Get returns one booking.
func (s *BookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: booking id %q", calendar.ErrInvalidInput, id)
	}
	return s.bookings.GetByID(ctx, id)
}

// ConfirmOnline executes the rail payment and confirms the booking.
// Redelivery for an already confirmed booking returns it unchanged.
func (s *BookingService) ConfirmOnline(ctx context.Context, id, paymentID, payerID string) (b *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.confirm_online")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", id))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	if strings.TrimSpace(paymentID) == "" || strings.TrimSpace(payerID) == "" {
		return nil, fmt.Errorf("%w: payment id and payer id are required", calendar.ErrInvalidInput)
	}
	b, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = calendar.NextStatus(b.Rail, b.Status, calendar.ActionConfirmPayment); err != nil {
		s.metrics.ObserveTransition(string(calendar.ActionConfirmPayment), err)
		return nil, err
	}
	if b.Status == calendar.StatusConfirmed {
		return b, nil
	}
	if b.PaymentReference != paymentID {
		return nil, fmt.Errorf("%w: payment %q does not belong to booking %s", calendar.ErrInvalidInput, paymentID, id)
	}
	if s.rail == nil {
		return nil, fmt.Errorf("%w: online payments are not configured", calendar.ErrExternalRail)
	}

	err = s.rail.ExecutePayment(ctx, paymentID, payerID)
	s.metrics.ObserveRailCall("execute", err)
	if err != nil {
		s.logger.Warn("payment execution failed", "booking_id", id, "error", err)
		return nil, err
	}

	now := s.clock.Now().UTC()
	err = s.bookings.Transition(ctx, id, []calendar.Status{calendar.StatusPending}, repository.BookingUpdate{
		Status:         calendar.StatusConfirmed,
		PayerReference: &payerID,
		ConfirmedAt:    &now,
	})
	s.metrics.ObserveTransition(string(calendar.ActionConfirmPayment), err)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidTransition) {
			// Параллельное подтверждение уже перевело бронь.
			if cur, getErr := s.bookings.GetByID(ctx, id); getErr == nil && cur.Status == calendar.StatusConfirmed {
				return cur, nil
			}
		}
		return nil, err
	}

	b, err = s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.confirmed(ctx, b, ActorClient)
	return b, nil
}

// ProofUpload: загруженный файл подтверждения перевода.
type ProofUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (s *BookingService) checkProof(p *ProofUpload) error {
	if len(p.Data) == 0 {
		return fmt.Errorf("%w: proof file is empty", calendar.ErrInvalidInput)
	}
	if len(p.Data) > s.cfg.MaxProofBytes {
		return fmt.Errorf("%w: proof file exceeds %d bytes", calendar.ErrInvalidInput, s.cfg.MaxProofBytes)
	}
	detected := http.DetectContentType(p.Data)
	if !strings.HasPrefix(detected, "image/") && detected != "application/pdf" {
		return fmt.Errorf("%w: proof must be an image or PDF, got %s", calendar.ErrInvalidInput, detected)
	}
	p.ContentType = detected
	p.Filename = strings.TrimSpace(p.Filename)
	if p.Filename == "" {
		p.Filename = "proof"
	}
	return nil
}

// UploadProof stores the transfer proof and confirms a bank_transfer booking.
// A second upload replaces the proof without notifying again.
func (s *BookingService) UploadProof(ctx context.Context, id string, upload ProofUpload) (b *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "booking.upload_proof")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", id))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
	}()

	if err = s.checkProof(&upload); err != nil {
		return nil, err
	}
	b, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err = calendar.NextStatus(b.Rail, b.Status, calendar.ActionAttachProof); err != nil {
		s.metrics.ObserveTransition(string(calendar.ActionAttachProof), err)
		return nil, err
	}
	prev := b.Status

	upd := repository.BookingUpdate{
		Status: calendar.StatusConfirmed,
		Proof:  &repository.Proof{Data: upload.Data, Filename: upload.Filename, ContentType: upload.ContentType},
	}
	if prev == calendar.StatusAwaitingProof {
		now := s.clock.Now().UTC()
		upd.ConfirmedAt = &now
	}
	if key := s.archiveProof(ctx, b, upload); key != "" {
		upd.ProofArchiveKey = &key
	}

	err = s.bookings.Transition(ctx, id, []calendar.Status{prev}, upd)
	s.metrics.ObserveTransition(string(calendar.ActionAttachProof), err)
	if err != nil {
		return nil, err
	}

	b, err = s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transfer proof attached", "booking_id", id, "filename", upload.Filename, "bytes", len(upload.Data))
	if prev == calendar.StatusAwaitingProof {
		s.confirmed(ctx, b, ActorClient)
	}
	return b, nil
}

func (s *BookingService) archiveProof(ctx context.Context, b *model.Booking, upload ProofUpload) string {
	if s.archive == nil {
		return ""
	}
	key, err := s.archive.PutProof(ctx, b.ID.String(), b.Date, upload.Filename, upload.ContentType, upload.Data)
	if err != nil {
		s.logger.Warn("proof archive failed", "booking_id", b.ID.String(), "error", err)
		return ""
	}
	return key
}

// AdminConfirm marks a bank_transfer booking confirmed by an administrator.
func (s *BookingService) AdminConfirm(ctx context.Context, id, admin string) (*model.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := calendar.NextStatus(b.Rail, b.Status, calendar.ActionAdminConfirm); err != nil {
		s.metrics.ObserveTransition(string(calendar.ActionAdminConfirm), err)
		return nil, err
	}
	prev := b.Status

	now := s.clock.Now().UTC()
	upd := repository.BookingUpdate{
		Status:           calendar.StatusConfirmed,
		AdminConfirmedAt: &now,
		AdminConfirmedBy: &admin,
	}
	if prev == calendar.StatusAwaitingProof {
		upd.ConfirmedAt = &now
	}
	err = s.bookings.Transition(ctx, id, []calendar.Status{prev}, upd)
	s.metrics.ObserveTransition(string(calendar.ActionAdminConfirm), err)
	if err != nil {
		return nil, err
	}

	b, err = s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("booking confirmed by admin", "booking_id", id, "admin", admin)
	if prev == calendar.StatusAwaitingProof {
		s.confirmed(ctx, b, admin)
	}
	return b, nil
}

// Cancel frees the slot of an open or confirmed booking.
func (s *BookingService) Cancel(ctx context.Context, id, admin string) (*model.Booking, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := calendar.NextStatus(b.Rail, b.Status, calendar.ActionCancel); err != nil {
		s.metrics.ObserveTransition(string(calendar.ActionCancel), err)
		return nil, err
	}

	now := s.clock.Now().UTC()
	err = s.bookings.Transition(ctx, id, calendar.OccupyingStatuses(), repository.BookingUpdate{
		Status:      calendar.StatusCancelled,
		CancelledAt: &now,
	})
	s.metrics.ObserveTransition(string(calendar.ActionCancel), err)
	if err != nil {
		return nil, err
	}

	s.audit.record(ctx, model.EventTypeBookingCancelled, &b.ID, admin, map[string]any{"from": b.Status})
	s.logger.Info("booking cancelled", "booking_id", id, "admin", admin)
	return s.bookings.GetByID(ctx, id)
}

// Delete tombstones the booking and drops its proof. Deleting twice is a no-op.
func (s *BookingService) Delete(ctx context.Context, id, admin string) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.Status == calendar.StatusDeleted {
		return nil
	}

	now := s.clock.Now().UTC()
	err = s.bookings.Transition(ctx, id, nil, repository.BookingUpdate{
		Status:     calendar.StatusDeleted,
		RemovedAt:  &now,
		ClearProof: true,
	})
	s.metrics.ObserveTransition(string(calendar.ActionDelete), err)
	if err != nil {
		return err
	}

	s.audit.record(ctx, model.EventTypeBookingDeleted, &b.ID, admin, map[string]any{"from": b.Status})
	s.logger.Info("booking deleted", "booking_id", id, "admin", admin)
	return nil
}

func (s *BookingService) confirmed(ctx context.Context, b *model.Booking, actor string) {
	s.audit.record(ctx, model.EventTypeBookingConfirmed, &b.ID, actor, map[string]any{"rail": b.Rail})
	s.logger.Info("booking confirmed", "booking_id", b.ID.String(), "rail", string(b.Rail))
	if s.notifier != nil {
		s.notifier.BookingConfirmed(b)
	}
}

// ListQuery: фильтр админского списка.
type ListQuery struct {
	Status   string
	Date     string
	Page     int
	PageSize int
}

// List returns bookings newest first.
func (s *BookingService) List(ctx context.Context, q ListQuery) (calendar.Page[model.Booking], error) {
	const (
		defaultPageSize = 20
		maxPageSize     = 200
	)
	filter := repository.BookingFilter{}
	if q.Status != "" {
		st, err := calendar.ParseStatus(q.Status)
		if err != nil {
			return calendar.Page[model.Booking]{}, err
		}
		filter.Status = st
	}
	if q.Date != "" {
		if _, err := calendar.ParseDate(q.Date); err != nil {
			return calendar.Page[model.Booking]{}, err
		}
		filter.Date = q.Date
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	filter.Limit = q.PageSize
	filter.Offset = (q.Page - 1) * q.PageSize

	items, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return calendar.Page[model.Booking]{}, fmt.Errorf("list bookings: %w", err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return calendar.Page[model.Booking]{
		Items:    items,
		Page:     q.Page,
		PageSize: q.PageSize,
		HasNext:  int64(filter.Offset+len(items)) < total,
		HasPrev:  q.Page > 1,
		Total:    int(total),
	}, nil
}

// Stats returns booking aggregates for the admin dashboard.
func (s *BookingService) Stats(ctx context.Context) (repository.BookingStats, error) {
	return s.bookings.Stats(ctx)
}

// ProofFile is a stored transfer proof.
type ProofFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Proof returns the stored proof, falling back to the archive copy.
func (s *BookingService) Proof(ctx context.Context, id string) (*ProofFile, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.HasProof() {
		return &ProofFile{Filename: b.ProofFilename, ContentType: b.ProofContentType, Data: b.ProofData}, nil
	}
	if b.ProofArchiveKey != "" && s.archive != nil {
		data, ct, err := s.archive.GetProof(ctx, b.ProofArchiveKey)
		if err != nil {
			return nil, err
		}
		if ct == "" {
			ct = b.ProofContentType
		}
		return &ProofFile{Filename: b.ProofFilename, ContentType: ct, Data: data}, nil
	}
	return nil, fmt.Errorf("%w: booking %s has no proof", calendar.ErrNotFound, id)
}

// History returns the audit trail of one booking.
func (s *BookingService) History(ctx context.Context, id string) ([]model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: booking id %q", calendar.ErrInvalidInput, id)
	}
	if s.audit.events == nil {
		return []model.Event{}, nil
	}
	return s.audit.events.ListByBooking(ctx, id)
}

// stamp форматирует время для выгрузки.
func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
