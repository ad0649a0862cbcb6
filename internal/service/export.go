package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/repository"
)

// exportBatchSize: размер страницы при выгрузке.
var exportBatchSize = 200

var exportHeader = []string{
	"id", "created_at", "client_name", "client_email", "client_contact",
	"date", "slot", "rail", "duration", "price", "currency", "status",
	"payment_reference", "payer_reference", "confirmed_at", "admin_confirmed_by", "cancelled_at",
}

// ExportCSV writes every booking matching status (empty for all) as CSV, newest first.
func (s *BookingService) ExportCSV(ctx context.Context, w io.Writer, status string) error {
	filter := repository.BookingFilter{Limit: exportBatchSize}
	if status != "" {
		st, err := calendar.ParseStatus(status)
		if err != nil {
			return err
		}
		filter.Status = st
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	rows := 0
	for {
		items, _, err := s.bookings.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("export bookings: %w", err)
		}
		for _, b := range items {
			row := []string{
				b.ID.String(),
				b.CreatedAt.UTC().Format(time.RFC3339),
				b.ClientName,
				b.ClientEmail,
				b.ClientContact,
				b.Date,
				b.Slot,
				string(b.Rail),
				string(b.Duration),
				calendar.FormatCents(b.PriceCents),
				b.Currency,
				string(b.Status),
				b.PaymentReference,
				b.PayerReference,
				stamp(b.ConfirmedAt),
				b.AdminConfirmedBy,
				stamp(b.CancelledAt),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		rows += len(items)
		if len(items) < filter.Limit {
			break
		}
		// Страницы не сдвигаются от вставок во время выгрузки.
		filter.Before = repository.CursorAfter(items[len(items)-1])
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	s.logger.Info("bookings exported", "rows", rows, "status", status)
	return nil
}
