package calendar

import (
	"fmt"
	"strings"
)

// Status: состояние бронирования. Закрытое множество из пяти значений.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAwaitingProof Status = "awaiting_proof"
	StatusConfirmed     Status = "confirmed"
	StatusCancelled     Status = "cancelled"
	StatusDeleted       Status = "deleted"
)

var allStatuses = []Status{StatusPending, StatusAwaitingProof, StatusConfirmed, StatusCancelled, StatusDeleted}

// ParseStatus accepts only the five known states.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalidf("unknown booking status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Occupies reports whether a booking in this status holds its slot.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusAwaitingProof || s == StatusConfirmed
}

// OccupyingStatuses lists the statuses that hold a slot.
func OccupyingStatuses() []Status {
	return []Status{StatusPending, StatusAwaitingProof, StatusConfirmed}
}

// Rail: способ оплаты.
type Rail string

const (
	RailOnline       Rail = "online"
	RailBankTransfer Rail = "bank_transfer"
)

// ParseRail also accepts the processor names used by older clients.
func ParseRail(s string) (Rail, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "paypal":
		return RailOnline, nil
	case "bank_transfer", "bank-transfer", "zelle":
		return RailBankTransfer, nil
	default:
		return "", invalidf("unknown payment rail %q", s)
	}
}

// InitialStatus is the status a freshly created booking starts in.
func (r Rail) InitialStatus() Status {
	if r == RailBankTransfer {
		return StatusAwaitingProof
	}
	return StatusPending
}

// Action: событие жизненного цикла.
type Action string

const (
	ActionConfirmPayment Action = "confirm_payment"
	ActionAttachProof    Action = "attach_proof"
	ActionAdminConfirm   Action = "admin_confirm"
	ActionCancel         Action = "cancel"
	ActionDelete         Action = "delete"
)

// NextStatus applies action to a booking on rail in status from.
// Statuses only move forward; confirmed->confirmed is allowed where the
// action is idempotent.
func NextStatus(rail Rail, from Status, action Action) (Status, error) {
	switch action {
	case ActionConfirmPayment:
		if rail != RailOnline {
			return "", transitionErr(rail, from, action)
		}
		if from == StatusPending || from == StatusConfirmed {
			return StatusConfirmed, nil
		}
	case ActionAttachProof, ActionAdminConfirm:
		if rail != RailBankTransfer {
			return "", transitionErr(rail, from, action)
		}
		if from == StatusAwaitingProof || from == StatusConfirmed {
			return StatusConfirmed, nil
		}
	case ActionCancel:
		if from.Occupies() {
			return StatusCancelled, nil
		}
	case ActionDelete:
		return StatusDeleted, nil
	}
	return "", transitionErr(rail, from, action)
}

func transitionErr(rail Rail, from Status, action Action) error {
	return fmt.Errorf("%w: %s on %s booking in status %s", ErrInvalidTransition, action, rail, from)
}
