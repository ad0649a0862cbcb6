package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

var tracer = otel.Tracer("consultation.internal.service")

// ScheduleService resolves availability and manages the weekly template and overrides.
type ScheduleService struct {
	settings repository.SettingsRepository
	bookings repository.BookingRepository
	audit    auditor
	seed     calendar.WeeklyTemplate
	clock    calendar.Clock
	logger   *logging.Logger
}

// NewScheduleService создаёт сервис расписания; seed используется, пока шаблон не сохранён.
func NewScheduleService(
	settings repository.SettingsRepository,
	bookings repository.BookingRepository,
	events repository.EventRepository,
	seed calendar.WeeklyTemplate,
	clock calendar.Clock,
	logger *logging.Logger,
) *ScheduleService {
	if logger == nil {
		logger = logging.Default()
	}
	if seed == nil {
		seed = calendar.DefaultWeeklyTemplate()
	}
	return &ScheduleService{
		settings: settings,
		bookings: bookings,
		audit:    auditor{events: events, logger: logger},
		seed:     seed.Normalize(),
		clock:    clock,
		logger:   logger,
	}
}

// WeeklyTemplate returns the persisted template, seeding it on first access.
func (s *ScheduleService) WeeklyTemplate(ctx context.Context) (calendar.WeeklyTemplate, error) {
	tpl, err := s.settings.GetWeeklyTemplate(ctx)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, calendar.ErrNotFound) {
		return nil, fmt.Errorf("load weekly template: %w", err)
	}
	if err := s.settings.SaveWeeklyTemplate(ctx, s.seed); err != nil {
		return nil, fmt.Errorf("seed weekly template: %w", err)
	}
	s.logger.Info("weekly template seeded")
	return s.seed.Normalize(), nil
}

// Snapshot loads the template and the override for one date.
func (s *ScheduleService) Snapshot(ctx context.Context, date string) (calendar.Snapshot, error) {
	tpl, err := s.WeeklyTemplate(ctx)
	if err != nil {
		return calendar.Snapshot{}, err
	}
	override, err := s.settings.GetOverride(ctx, date)
	if err != nil {
		return calendar.Snapshot{}, fmt.Errorf("load override %s: %w", date, err)
	}
	return calendar.Snapshot{Template: tpl, Override: override}, nil
}

// ResolveSlots returns the configured slots for date before subtracting bookings.
func (s *ScheduleService) ResolveSlots(ctx context.Context, date string) ([]string, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, date)
	if err != nil {
		return nil, err
	}
	return snap.Resolve(d), nil
}

// AvailableSlots returns the open slots for date in resolver order.
func (s *ScheduleService) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "schedule.available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	resolved, err := s.ResolveSlots(ctx, date)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(resolved) == 0 {
		return resolved, nil
	}

	occupied, err := s.bookings.ListOccupiedSlots(ctx, date, calendar.OccupyingStatuses())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list occupied slots %s: %w", date, err)
	}

	open := calendar.Available(resolved, occupied)
	span.SetAttributes(attribute.Int("slots.open", len(open)))
	return open, nil
}

// UpdateWeeklyTemplate replaces the template wholesale.
func (s *ScheduleService) UpdateWeeklyTemplate(ctx context.Context, tpl calendar.WeeklyTemplate, actor string) (calendar.WeeklyTemplate, error) {
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	normalized := tpl.Normalize()
	if err := s.settings.SaveWeeklyTemplate(ctx, normalized); err != nil {
		return nil, fmt.Errorf("save weekly template: %w", err)
	}
	s.audit.record(ctx, model.EventTypeScheduleUpdated, nil, actor, map[string]any{"weekly": normalized})
	s.logger.Info("weekly template updated", "actor", actor)
	return normalized, nil
}

// SetOverride creates or replaces the override for o.Date.
func (s *ScheduleService) SetOverride(ctx context.Context, o calendar.DateOverride, actor string) (calendar.DateOverride, error) {
	if err := o.Validate(); err != nil {
		return calendar.DateOverride{}, err
	}
	if o.Unavailable || o.Slots == nil {
		o.Slots = []string{}
	}
	if err := s.settings.UpsertOverride(ctx, o); err != nil {
		return calendar.DateOverride{}, fmt.Errorf("save override %s: %w", o.Date, err)
	}
	s.audit.record(ctx, model.EventTypeScheduleUpdated, nil, actor, map[string]any{
		"date": o.Date, "slots": o.Slots, "unavailable": o.Unavailable,
	})
	s.logger.Info("date override saved", "date", o.Date, "unavailable", o.Unavailable, "actor", actor)
	return o, nil
}

// RemoveOverride drops the override so the date falls back to the template.
func (s *ScheduleService) RemoveOverride(ctx context.Context, date, actor string) error {
	if _, err := calendar.ParseDate(date); err != nil {
		return err
	}
	if err := s.settings.DeleteOverride(ctx, date); err != nil {
		return err
	}
	s.audit.record(ctx, model.EventTypeScheduleUpdated, nil, actor, map[string]any{"date": date, "removed": true})
	return nil
}

// ScheduleView: недельный шаблон и предстоящие исключения для админки.
type ScheduleView struct {
	Weekly    calendar.WeeklyTemplate             `json:"weekly"`
	Overrides calendar.Page[calendar.DateOverride] `json:"overrides"`
	Timezone  string                              `json:"timezone,omitempty"`
}

// View returns the template and overrides from today onwards, paginated.
func (s *ScheduleService) View(ctx context.Context, page, pageSize int) (*ScheduleView, error) {
	tpl, err := s.WeeklyTemplate(ctx)
	if err != nil {
		return nil, err
	}
	today := s.clock.Now().Format(calendar.DateLayout)
	overrides, err := s.settings.ListOverrides(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	calendar.SortOverrides(overrides)

	view := &ScheduleView{
		Weekly:    tpl,
		Overrides: calendar.Paginate(overrides, page, pageSize),
	}
	if pc, ok := s.clock.(*calendar.ProviderClock); ok {
		view.Timezone = pc.Location().String()
	}
	return view, nil
}
