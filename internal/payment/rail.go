// Package payment talks to the online payment rail.
package payment

import (
	"context"

	"github.com/google/uuid"
)

// CreateRequest describes a redirect payment for one booking.
type CreateRequest struct {
	BookingID   uuid.UUID
	AmountCents int64
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

// Payment is the rail's handle for a created payment.
type Payment struct {
	ID          string
	ApprovalURL string
}

// Rail creates and executes redirect payments. Errors wrap calendar.ErrExternalRail.
type Rail interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error)
	ExecutePayment(ctx context.Context, paymentID, payerID string) error
}
