package grpcapi

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/service"
)

type ListAvailableSlotsRequest struct {
	Date string `json:"date"`
}

type ListAvailableSlotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type GetPricingRequest struct{}

type GetPricingResponse struct {
	Currency           string                  `json:"currency"`
	BasePriceCents     int64                   `json:"base_price_cents"`
	HalfExtensionCents int64                   `json:"half_extension_cents"`
	FullExtensionCents int64                   `json:"full_extension_cents"`
	PaymentDestination string                  `json:"payment_destination"`
	Quotes             []service.DurationQuote `json:"quotes"`
}

type GetBookingRequest struct {
	ID string `json:"id"`
}

// Booking: публичное представление брони без вложений и контактов клиента.
type Booking struct {
	ID          string                 `json:"id"`
	Date        string                 `json:"date"`
	Slot        string                 `json:"slot"`
	Rail        string                 `json:"rail"`
	Duration    string                 `json:"duration"`
	PriceCents  int64                  `json:"price_cents"`
	Currency    string                 `json:"currency"`
	Status      string                 `json:"status"`
	CreatedAt   *timestamppb.Timestamp `json:"created_at"`
	ConfirmedAt *timestamppb.Timestamp `json:"confirmed_at,omitempty"`
}

func bookingFromModel(b *model.Booking) *Booking {
	out := &Booking{
		ID:          b.ID.String(),
		Date:        b.Date,
		Slot:        b.Slot,
		Rail:        string(b.Rail),
		Duration:    string(b.Duration),
		PriceCents:  b.PriceCents,
		Currency:    b.Currency,
		Status:      string(b.Status),
		CreatedAt:   timestamppb.New(b.CreatedAt),
	}
	if b.ConfirmedAt != nil {
		out.ConfirmedAt = timestamppb.New(*b.ConfirmedAt)
	}
	return out
}
