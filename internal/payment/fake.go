package payment

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// FakeRail approves every payment without talking to a processor.
//
// This MUST be gated by ALLOW_FAKE_PAYMENTS and never enabled in production.
type FakeRail struct {
	logger *logging.Logger

	mu       sync.Mutex
	created  map[string]CreateRequest
	executed map[string]int

	// FailCreate / FailExecute симулируют отказ процессора.
	FailCreate  bool
	FailExecute bool
}

func NewFakeRail(logger *logging.Logger) *FakeRail {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeRail{
		logger:   logger,
		created:  make(map[string]CreateRequest),
		executed: make(map[string]int),
	}
}

func (f *FakeRail) CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreate {
		return nil, fmt.Errorf("%w: fake create failure", calendar.ErrExternalRail)
	}

	id := "FAKE-" + uuid.NewString()
	f.created[id] = req

	approval := req.ReturnURL
	if u, err := url.Parse(req.ReturnURL); err == nil && req.ReturnURL != "" {
		q := u.Query()
		q.Set("paymentId", id)
		q.Set("PayerID", "FAKEPAYER")
		u.RawQuery = q.Encode()
		approval = u.String()
	}

	f.logger.Info("fake payment created", "payment_id", id, "booking_id", req.BookingID)
	return &Payment{ID: id, ApprovalURL: approval}, nil
}

func (f *FakeRail) ExecutePayment(ctx context.Context, paymentID, payerID string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailExecute {
		return fmt.Errorf("%w: fake execute failure", calendar.ErrExternalRail)
	}
	if _, ok := f.created[paymentID]; !ok {
		return fmt.Errorf("%w: unknown fake payment %s", calendar.ErrExternalRail, paymentID)
	}
	f.executed[paymentID]++
	f.logger.Info("fake payment executed", "payment_id", paymentID, "payer_id", payerID)
	return nil
}

// Executions reports how many times paymentID was executed.
func (f *FakeRail) Executions(paymentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executed[paymentID]
}

var _ Rail = (*FakeRail)(nil)
