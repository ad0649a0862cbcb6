package model

import (
	"time"

	"gorm.io/datatypes"

	"github.com/Leganyst/consultation-booking/internal/calendar"
)

// SingletonID — первичный ключ единственной строки настроек.
const SingletonID = 1

// weekly_schedules — одна строка с недельным шаблоном.
type WeeklySchedule struct {
	ID uint `gorm:"primaryKey"`

	Template datatypes.JSONType[calendar.WeeklyTemplate]

	UpdatedAt time.Time `gorm:"not null"`
}

// date_overrides — не более одного исключения на дату.
type DateOverride struct {
	Date string `gorm:"type:varchar(10);primaryKey"`

	Slots       datatypes.JSONSlice[string]
	Unavailable bool `gorm:"not null;default:false"`

	UpdatedAt time.Time `gorm:"not null"`
}

func (o *DateOverride) ToCalendar() calendar.DateOverride {
	slots := []string(o.Slots)
	if slots == nil {
		slots = []string{}
	}
	return calendar.DateOverride{Date: o.Date, Slots: slots, Unavailable: o.Unavailable}
}

func DateOverrideFromCalendar(o calendar.DateOverride) *DateOverride {
	slots := o.Slots
	if o.Unavailable || slots == nil {
		slots = []string{}
	}
	return &DateOverride{Date: o.Date, Slots: datatypes.JSONSlice[string](slots), Unavailable: o.Unavailable}
}
