package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// FailureRecorder counts delivery outcomes; *metrics.BookingMetrics satisfies it.
type FailureRecorder interface {
	ObserveNotification(recipient string, err error)
}

// Service delivers booking confirmations to the client and the provider.
// Delivery is asynchronous; failures are logged and counted, never returned.
type Service struct {
	email         EmailSender
	providerEmail string
	timeout       time.Duration
	recorder      FailureRecorder
	logger        *logging.Logger

	wg sync.WaitGroup
}

// Config holds notification settings.
type Config struct {
	ProviderEmail string
	Timeout       time.Duration
}

// NewService creates a notification service.
func NewService(email EmailSender, cfg Config, recorder FailureRecorder, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{
		email:         email,
		providerEmail: cfg.ProviderEmail,
		timeout:       cfg.Timeout,
		recorder:      recorder,
		logger:        logger,
	}
}

// BookingConfirmed schedules confirmation emails for b and returns immediately.
func (s *Service) BookingConfirmed(b *model.Booking) {
	if s == nil || s.email == nil || b == nil {
		return
	}
	snapshot := *b
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.deliver(ctx, &snapshot)
	}()
}

// Wait blocks until in-flight deliveries finish (used on shutdown and in tests).
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *Service) deliver(ctx context.Context, b *model.Booking) {
	log := s.logger.With("booking_id", b.ID.String(), "rail", string(b.Rail))

	var attachments []Attachment
	receipt, err := RenderReceipt(b)
	if err != nil {
		log.Warn("notify: receipt render failed", "error", err)
	} else {
		attachments = append(attachments, Attachment{
			Filename:    fmt.Sprintf("receipt-%s.pdf", b.ID),
			ContentType: "application/pdf",
			Data:        receipt,
		})
	}

	clientMsg := EmailMessage{
		To:          b.ClientEmail,
		ToName:      b.ClientName,
		Subject:     fmt.Sprintf("Your consultation on %s at %s is confirmed", b.Date, b.Slot),
		Body:        clientBody(b),
		Attachments: attachments,
	}
	err = s.email.Send(ctx, clientMsg)
	s.record("client", err)
	if err != nil {
		log.Error("notify: client confirmation failed", "error", err, "to", b.ClientEmail)
	}

	if s.providerEmail == "" {
		log.Debug("notify: provider email not configured, skipping")
		return
	}

	providerAttachments := append([]Attachment(nil), attachments...)
	if b.HasProof() {
		providerAttachments = append(providerAttachments, Attachment{
			Filename:    proofFilename(b),
			ContentType: b.ProofContentType,
			Data:        b.ProofData,
		})
	}
	providerMsg := EmailMessage{
		To:          s.providerEmail,
		Subject:     fmt.Sprintf("New booking: %s on %s at %s", b.ClientName, b.Date, b.Slot),
		Body:        providerBody(b),
		Attachments: providerAttachments,
	}
	err = s.email.Send(ctx, providerMsg)
	s.record("provider", err)
	if err != nil {
		log.Error("notify: provider notification failed", "error", err)
	}
}

func (s *Service) record(recipient string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveNotification(recipient, err)
	}
}

func proofFilename(b *model.Booking) string {
	if b.ProofFilename != "" {
		return b.ProofFilename
	}
	return "payment-proof-" + b.ID.String()
}

func clientBody(b *model.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", b.ClientName)
	fmt.Fprintf(&sb, "Your consultation is confirmed.\n\n")
	fmt.Fprintf(&sb, "Date: %s\nTime: %s\n", b.Date, b.Slot)
	fmt.Fprintf(&sb, "Session: %s\n", durationLabel(b.Duration))
	fmt.Fprintf(&sb, "Amount paid: %s %s\n", calendar.FormatCents(b.PriceCents), b.Currency)
	fmt.Fprintf(&sb, "Reference: %s\n", b.ID)
	return sb.String()
}

func providerBody(b *model.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Client: %s <%s>\n", b.ClientName, b.ClientEmail)
	if b.ClientContact != "" {
		fmt.Fprintf(&sb, "Contact: %s\n", b.ClientContact)
	}
	fmt.Fprintf(&sb, "Date: %s %s\n", b.Date, b.Slot)
	fmt.Fprintf(&sb, "Session: %s\n", durationLabel(b.Duration))
	fmt.Fprintf(&sb, "Amount: %s %s via %s\n", calendar.FormatCents(b.PriceCents), b.Currency, railLabel(b.Rail))
	if b.PaymentReference != "" {
		fmt.Fprintf(&sb, "Payment reference: %s\n", b.PaymentReference)
	}
	if b.HasProof() {
		fmt.Fprintf(&sb, "Transfer proof attached: %s\n", proofFilename(b))
	}
	fmt.Fprintf(&sb, "Booking: %s\n", b.ID)
	return sb.String()
}
