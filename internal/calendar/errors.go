package calendar

import (
	"errors"
	"fmt"
)

// Ошибки ядра. Транспортные слои сопоставляют их через errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrExternalRail      = errors.New("payment rail failure")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrSlotUnavailable   = errors.New("slot is not available")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
