package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// SettingsService owns the pricing singleton.
type SettingsService struct {
	settings repository.SettingsRepository
	audit    auditor
	defaults calendar.PricingConfig
	currency string
	logger   *logging.Logger
}

func NewSettingsService(
	settings repository.SettingsRepository,
	events repository.EventRepository,
	defaults calendar.PricingConfig,
	currency string,
	logger *logging.Logger,
) *SettingsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettingsService{
		settings: settings,
		audit:    auditor{events: events, logger: logger},
		defaults: defaults,
		currency: currency,
		logger:   logger,
	}
}

// Currency is the fixed deployment currency.
func (s *SettingsService) Currency() string {
	return s.currency
}

// Pricing returns the persisted pricing, seeding defaults on first read.
func (s *SettingsService) Pricing(ctx context.Context) (calendar.PricingConfig, error) {
	cfg, err := s.settings.GetPricing(ctx)
	if err == nil {
		return *cfg, nil
	}
	if !errors.Is(err, calendar.ErrNotFound) {
		return calendar.PricingConfig{}, fmt.Errorf("load pricing: %w", err)
	}
	if err := s.settings.SavePricing(ctx, s.defaults); err != nil {
		return calendar.PricingConfig{}, fmt.Errorf("seed pricing: %w", err)
	}
	s.logger.Info("pricing defaults seeded", "base_price_cents", s.defaults.BasePriceCents)
	return s.defaults, nil
}

// UpdatePricing validates and upserts the pricing singleton.
func (s *SettingsService) UpdatePricing(ctx context.Context, cfg calendar.PricingConfig, actor string) (calendar.PricingConfig, error) {
	if err := cfg.Validate(); err != nil {
		return calendar.PricingConfig{}, err
	}
	if err := s.settings.SavePricing(ctx, cfg); err != nil {
		return calendar.PricingConfig{}, fmt.Errorf("save pricing: %w", err)
	}
	s.audit.record(ctx, model.EventTypeSettingsUpdated, nil, actor, map[string]any{
		"base_price_cents":     cfg.BasePriceCents,
		"half_extension_cents": cfg.HalfExtensionCents,
		"full_extension_cents": cfg.FullExtensionCents,
		"payment_destination":  cfg.PaymentDestination,
	})
	s.logger.Info("pricing updated", "actor", actor, "base_price_cents", cfg.BasePriceCents)
	return cfg, nil
}

// DurationQuote is the price of one duration selector.
type DurationQuote struct {
	Duration    calendar.DurationSelector `json:"duration"`
	AmountCents int64                     `json:"amount_cents"`
	Amount      string                    `json:"amount"`
}

// PaymentConfig is what the booking form needs before a client pays.
type PaymentConfig struct {
	Currency           string          `json:"currency"`
	PaymentDestination string          `json:"payment_destination"`
	Quotes             []DurationQuote `json:"quotes"`
}

// PaymentConfig returns the destination and a quote per duration.
func (s *SettingsService) PaymentConfig(ctx context.Context) (*PaymentConfig, error) {
	cfg, err := s.Pricing(ctx)
	if err != nil {
		return nil, err
	}
	out := &PaymentConfig{Currency: s.currency, PaymentDestination: cfg.PaymentDestination}
	for _, d := range []calendar.DurationSelector{calendar.DurationStandard, calendar.DurationPlusHalf, calendar.DurationPlusFull} {
		cents := calendar.Price(d, cfg)
		out.Quotes = append(out.Quotes, DurationQuote{Duration: d, AmountCents: cents, Amount: calendar.FormatCents(cents)})
	}
	return out, nil
}
