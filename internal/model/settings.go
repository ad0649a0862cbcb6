package model

import (
	"time"

	"github.com/Leganyst/consultation-booking/internal/calendar"
)

// pricing_settings — одна строка с ценами и реквизитом перевода.
type PricingSettings struct {
	ID uint `gorm:"primaryKey"`

	BasePriceCents     int64  `gorm:"not null"`
	HalfExtensionCents int64  `gorm:"not null"`
	FullExtensionCents int64  `gorm:"not null"`
	PaymentDestination string `gorm:"type:varchar(255);not null"`

	UpdatedAt time.Time `gorm:"not null"`
}

func (p *PricingSettings) ToCalendar() calendar.PricingConfig {
	return calendar.PricingConfig{
		BasePriceCents:     p.BasePriceCents,
		HalfExtensionCents: p.HalfExtensionCents,
		FullExtensionCents: p.FullExtensionCents,
		PaymentDestination: p.PaymentDestination,
	}
}

func PricingSettingsFromCalendar(cfg calendar.PricingConfig) *PricingSettings {
	return &PricingSettings{
		ID:                 SingletonID,
		BasePriceCents:     cfg.BasePriceCents,
		HalfExtensionCents: cfg.HalfExtensionCents,
		FullExtensionCents: cfg.FullExtensionCents,
		PaymentDestination: cfg.PaymentDestination,
	}
}
