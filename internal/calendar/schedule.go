package calendar

import (
	"sort"
	"strings"
	"time"
)

var weekdayKeys = [...]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// WeekdayKey returns the lowercase template key for d.
func WeekdayKey(d time.Weekday) string {
	return weekdayKeys[d]
}

func parseWeekdayKey(key string) (time.Weekday, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for d, k := range weekdayKeys {
		if k == key {
			return time.Weekday(d), true
		}
	}
	return 0, false
}

// WeeklyTemplate maps a weekday key ("monday".."sunday") to its ordered slot labels.
// A missing or empty day is closed.
type WeeklyTemplate map[string][]string

// DefaultWeeklyTemplate is seeded on first access when nothing is persisted.
func DefaultWeeklyTemplate() WeeklyTemplate {
	weekday := []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00", "18:00"}
	tpl := WeeklyTemplate{
		"saturday": {"09:00", "10:00", "11:00"},
		"sunday":   {},
	}
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		tpl[WeekdayKey(d)] = append([]string(nil), weekday...)
	}
	return tpl
}

// SlotsFor returns a copy of the slots configured for d, never nil.
func (t WeeklyTemplate) SlotsFor(d time.Weekday) []string {
	slots := t[WeekdayKey(d)]
	out := make([]string, len(slots))
	copy(out, slots)
	return out
}

// Validate checks weekday keys, slot label format and per-day uniqueness.
func (t WeeklyTemplate) Validate() error {
	for key, slots := range t {
		if _, ok := parseWeekdayKey(key); !ok {
			return invalidf("unknown weekday %q", key)
		}
		if err := validateSlotList(slots); err != nil {
			return err
		}
	}
	return nil
}

// Normalize lowercases keys and fills the seven days so the JSON form is stable.
func (t WeeklyTemplate) Normalize() WeeklyTemplate {
	out := make(WeeklyTemplate, len(weekdayKeys))
	for _, k := range weekdayKeys {
		out[k] = []string{}
	}
	for key, slots := range t {
		if d, ok := parseWeekdayKey(key); ok {
			out[WeekdayKey(d)] = append([]string{}, slots...)
		}
	}
	return out
}

// DateOverride replaces the template output for one calendar date.
type DateOverride struct {
	Date        string   `json:"date"`
	Slots       []string `json:"slots"`
	Unavailable bool     `json:"unavailable"`
}

func (o DateOverride) Validate() error {
	if _, err := ParseDate(o.Date); err != nil {
		return err
	}
	if o.Unavailable {
		return nil
	}
	return validateSlotList(o.Slots)
}

// Resolve merges the weekly template with an optional override for date.
//
//   - unavailable override → no slots;
//   - override with slots → the override list verbatim;
//   - no override → template slots for the weekday.
func Resolve(date time.Time, tpl WeeklyTemplate, override *DateOverride) []string {
	if override != nil {
		if override.Unavailable {
			return []string{}
		}
		return append([]string{}, override.Slots...)
	}
	return tpl.SlotsFor(date.Weekday())
}

// Snapshot is the settings state a single read operation resolves against.
type Snapshot struct {
	Template WeeklyTemplate
	Override *DateOverride
}

func (s Snapshot) Resolve(date time.Time) []string {
	return Resolve(date, s.Template, s.Override)
}

// SortOverrides orders overrides by date ascending.
func SortOverrides(list []DateOverride) {
	sort.Slice(list, func(i, j int) bool { return list[i].Date < list[j].Date })
}
