package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// SettingsRepository хранит цены, недельный шаблон и исключения по датам.
// Get-методы возвращают ErrNotFound, если значение ещё не сохранено;
// подстановку дефолтов делает сервис.
type SettingsRepository interface {
	GetPricing(ctx context.Context) (*calendar.PricingConfig, error)
	SavePricing(ctx context.Context, cfg calendar.PricingConfig) error

	GetWeeklyTemplate(ctx context.Context) (calendar.WeeklyTemplate, error)
	SaveWeeklyTemplate(ctx context.Context, tpl calendar.WeeklyTemplate) error

	// GetOverride возвращает (nil, nil), если исключения на дату нет.
	GetOverride(ctx context.Context, date string) (*calendar.DateOverride, error)
	ListOverrides(ctx context.Context, from string) ([]calendar.DateOverride, error)
	UpsertOverride(ctx context.Context, o calendar.DateOverride) error
	DeleteOverride(ctx context.Context, date string) error
}

type GormSettingsRepository struct {
	db *gorm.DB
}

func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

func (r *GormSettingsRepository) GetPricing(ctx context.Context) (*calendar.PricingConfig, error) {
	var p model.PricingSettings
	if err := r.db.WithContext(ctx).First(&p, model.SingletonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("pricing settings: %w", calendar.ErrNotFound)
		}
		return nil, err
	}
	cfg := p.ToCalendar()
	return &cfg, nil
}

func (r *GormSettingsRepository) SavePricing(ctx context.Context, cfg calendar.PricingConfig) error {
	// Save делает upsert по первичному ключу.
	return r.db.WithContext(ctx).Save(model.PricingSettingsFromCalendar(cfg)).Error
}

func (r *GormSettingsRepository) GetWeeklyTemplate(ctx context.Context) (calendar.WeeklyTemplate, error) {
	var ws model.WeeklySchedule
	if err := r.db.WithContext(ctx).First(&ws, model.SingletonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("weekly schedule: %w", calendar.ErrNotFound)
		}
		return nil, err
	}
	return ws.Template.Data().Normalize(), nil
}

func (r *GormSettingsRepository) SaveWeeklyTemplate(ctx context.Context, tpl calendar.WeeklyTemplate) error {
	ws := &model.WeeklySchedule{
		ID:       model.SingletonID,
		Template: datatypes.NewJSONType(tpl.Normalize()),
	}
	return r.db.WithContext(ctx).Save(ws).Error
}

func (r *GormSettingsRepository) GetOverride(ctx context.Context, date string) (*calendar.DateOverride, error) {
	var o model.DateOverride
	err := r.db.WithContext(ctx).Where("date = ?", date).Limit(1).Find(&o).Error
	if err != nil {
		return nil, err
	}
	if o.Date == "" {
		return nil, nil
	}
	co := o.ToCalendar()
	return &co, nil
}

func (r *GormSettingsRepository) ListOverrides(ctx context.Context, from string) ([]calendar.DateOverride, error) {
	var rows []model.DateOverride
	q := r.db.WithContext(ctx).Order("date ASC")
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]calendar.DateOverride, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToCalendar())
	}
	return out, nil
}

func (r *GormSettingsRepository) UpsertOverride(ctx context.Context, o calendar.DateOverride) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"slots", "unavailable", "updated_at"}),
		}).
		Create(model.DateOverrideFromCalendar(o)).
		Error
}

func (r *GormSettingsRepository) DeleteOverride(ctx context.Context, date string) error {
	res := r.db.WithContext(ctx).Delete(&model.DateOverride{}, "date = ?", date)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("override %s: %w", date, calendar.ErrNotFound)
	}
	return nil
}
