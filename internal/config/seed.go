package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Leganyst/consultation-booking/internal/calendar"
)

// ScheduleSeed: начальное недельное расписание из YAML.
//
//	weekly:
//	  monday: ["09:00", "10:00"]
//	  tuesday:
//	    - from: "09:00"
//	      to: "12:00"
//	      every: 1h
//	  sunday: []
type ScheduleSeed struct {
	Weekly map[string][]SlotEntry `yaml:"weekly"`
}

// SlotEntry is either a single "HH:MM" label or a {from, to, every} range.
type SlotEntry struct {
	Label string
	From  string
	To    string
	Every time.Duration
}

func (e *SlotEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.Label)
	}
	var r struct {
		From  string `yaml:"from"`
		To    string `yaml:"to"`
		Every string `yaml:"every"`
	}
	if err := node.Decode(&r); err != nil {
		return err
	}
	e.From, e.To = r.From, r.To
	e.Every = time.Hour
	if r.Every != "" {
		d, err := time.ParseDuration(r.Every)
		if err != nil {
			return fmt.Errorf("line %d: invalid every %q: %w", node.Line, r.Every, err)
		}
		e.Every = d
	}
	return nil
}

func (e SlotEntry) labels() ([]string, error) {
	if e.Label != "" {
		return []string{e.Label}, nil
	}
	return calendar.SlotLabels(e.From, e.To, e.Every)
}

// ParseScheduleSeed decodes YAML into a validated weekly template.
func ParseScheduleSeed(data []byte) (calendar.WeeklyTemplate, error) {
	var seed ScheduleSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse schedule seed: %w", err)
	}
	if len(seed.Weekly) == 0 {
		return nil, fmt.Errorf("parse schedule seed: weekly section is empty")
	}

	tpl := make(calendar.WeeklyTemplate, len(seed.Weekly))
	for day, entries := range seed.Weekly {
		slots := []string{}
		for _, e := range entries {
			labels, err := e.labels()
			if err != nil {
				return nil, fmt.Errorf("schedule seed %s: %w", day, err)
			}
			slots = append(slots, labels...)
		}
		tpl[day] = slots
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("schedule seed: %w", err)
	}
	return tpl.Normalize(), nil
}

// LoadScheduleSeed reads path; an empty path means "use the built-in default".
func LoadScheduleSeed(path string) (calendar.WeeklyTemplate, error) {
	if path == "" {
		return calendar.DefaultWeeklyTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule seed: %w", err)
	}
	return ParseScheduleSeed(data)
}
