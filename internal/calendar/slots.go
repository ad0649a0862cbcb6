package calendar

import (
	"errors"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
)

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange создаёт интервал и делает простую валидацию.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// SplitToTimeSlots разбивает интервал на слоты фиксированной длительности.
// alignMinutes > 0: выравнивание начала по ближайшей отметке, кратной alignMinutes.
// "Хвост" меньшей длительности, чем slotDuration, отбрасывается.
func SplitToTimeSlots(tr TimeRange, slotDuration time.Duration, alignMinutes int) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	start := tr.Start
	if alignMinutes > 0 {
		if rem := start.Minute() % alignMinutes; rem != 0 {
			start = start.Truncate(time.Minute).Add(time.Duration(alignMinutes-rem) * time.Minute)
			if !start.Before(tr.End) {
				return []TimeRange{}, nil
			}
		}
	}

	var slots []TimeRange
	for cur := start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}

// SlotLabels expands a working window "from".."to" into HH:MM start labels,
// one every step. A trailing window shorter than step is dropped.
func SlotLabels(from, to string, step time.Duration) ([]string, error) {
	if err := ValidateSlotLabel(from); err != nil {
		return nil, err
	}
	if err := ValidateSlotLabel(to); err != nil {
		return nil, err
	}
	start, _ := time.Parse(SlotLayout, from)
	end, _ := time.Parse(SlotLayout, to)
	tr, err := NewTimeRange(start, end)
	if err != nil {
		return nil, invalidf("window %s-%s is empty", from, to)
	}
	ranges, err := SplitToTimeSlots(tr, step, 0)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	labels := make([]string, 0, len(ranges))
	for _, r := range ranges {
		labels = append(labels, r.Start.Format(SlotLayout))
	}
	return labels, nil
}
