package calendar

import (
	"fmt"
	"time"
)

const (
	// DateLayout: календарная дата без времени, сравнивается как строка.
	DateLayout = "2006-01-02"
	// SlotLayout: метка слота в 24-часовом формате.
	SlotLayout = "15:04"
)

// ParseDate strictly parses a YYYY-MM-DD date. Anything that does not
// round-trip to the same string is rejected, surrounding whitespace included.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil || t.Format(DateLayout) != s {
		return time.Time{}, invalidf("date %q must be in YYYY-MM-DD format", s)
	}
	return t, nil
}

// ValidateSlotLabel checks that s is a zero-padded HH:MM label.
func ValidateSlotLabel(s string) error {
	t, err := time.Parse(SlotLayout, s)
	if err != nil || t.Format(SlotLayout) != s {
		return invalidf("slot %q must be in HH:MM format", s)
	}
	return nil
}

func validateSlotList(slots []string) error {
	seen := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		if err := ValidateSlotLabel(s); err != nil {
			return err
		}
		if _, dup := seen[s]; dup {
			return invalidf("duplicate slot %q", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Clock выдаёт текущее время в часовом поясе провайдера.
type Clock interface {
	Now() time.Time
}

// ProviderClock is the fixed-timezone clock used for every timestamp.
type ProviderClock struct {
	loc *time.Location
}

func NewProviderClock(tz string) (*ProviderClock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load provider timezone %q: %w", tz, err)
	}
	return &ProviderClock{loc: loc}, nil
}

func (c *ProviderClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *ProviderClock) Location() *time.Location {
	return c.loc
}

// FixedClock returns the same instant; used by tests and replay tools.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
