package calendar

import (
	"fmt"
	"net/mail"
	"strings"
)

// DurationSelector выбирает длительность сессии.
type DurationSelector string

const (
	DurationStandard DurationSelector = "standard"
	DurationPlusHalf DurationSelector = "plus_half"
	DurationPlusFull DurationSelector = "plus_full"
)

// NormalizeDuration maps user input onto a known selector. Unknown values
// fall back to standard, matching how the booking form has always behaved.
func NormalizeDuration(s string) DurationSelector {
	switch DurationSelector(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")) {
	case DurationPlusHalf:
		return DurationPlusHalf
	case DurationPlusFull:
		return DurationPlusFull
	default:
		return DurationStandard
	}
}

// PricingConfig: цены в центах и реквизит для банковского перевода.
type PricingConfig struct {
	BasePriceCents     int64  `json:"base_price_cents"`
	HalfExtensionCents int64  `json:"half_extension_cents"`
	FullExtensionCents int64  `json:"full_extension_cents"`
	PaymentDestination string `json:"payment_destination"`
}

// DefaultPricing is applied on first read when nothing is persisted.
func DefaultPricing(destination string) PricingConfig {
	return PricingConfig{
		BasePriceCents:     5000,
		HalfExtensionCents: 2500,
		FullExtensionCents: 4500,
		PaymentDestination: destination,
	}
}

func (c PricingConfig) Validate() error {
	if c.BasePriceCents <= 0 {
		return invalidf("base price must be greater than 0")
	}
	if c.HalfExtensionCents < 0 || c.FullExtensionCents < 0 {
		return invalidf("extension fees must not be negative")
	}
	return ValidateEmail(c.PaymentDestination)
}

// Price computes the amount for a duration selector.
func Price(sel DurationSelector, cfg PricingConfig) int64 {
	switch sel {
	case DurationPlusHalf:
		return cfg.BasePriceCents + cfg.HalfExtensionCents
	case DurationPlusFull:
		return cfg.BasePriceCents + cfg.FullExtensionCents
	default:
		return cfg.BasePriceCents
	}
}

// FormatCents renders cents as a decimal amount, e.g. 7500 -> "75.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ValidateEmail accepts a bare address (no display name).
func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return invalidf("invalid email %q", s)
	}
	return nil
}
