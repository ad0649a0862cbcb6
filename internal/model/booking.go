package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/calendar"
)

// bookings
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ClientName    string `gorm:"type:varchar(255);not null" json:"client_name"`
	ClientEmail   string `gorm:"type:varchar(255);not null;index" json:"client_email"`
	ClientContact string `gorm:"type:varchar(255)" json:"client_contact,omitempty"`

	// Дата и слот в часовом поясе провайдера, "YYYY-MM-DD" и "HH:MM".
	Date string `gorm:"type:varchar(10);not null;index:idx_bookings_date_status,priority:1" json:"date"`
	Slot string `gorm:"type:varchar(5);not null" json:"slot"`

	Rail       calendar.Rail             `gorm:"type:varchar(32);not null" json:"rail"`
	Duration   calendar.DurationSelector `gorm:"type:varchar(32);not null" json:"duration"`
	PriceCents int64                     `gorm:"not null" json:"price_cents"`
	Currency   string                    `gorm:"type:varchar(3);not null" json:"currency"`
	Status     calendar.Status           `gorm:"type:varchar(32);not null;index:idx_bookings_date_status,priority:2" json:"status"`

	// online
	PaymentReference string `gorm:"type:varchar(128);index" json:"payment_reference,omitempty"`
	PayerReference   string `gorm:"type:varchar(128)" json:"payer_reference,omitempty"`

	// bank_transfer
	ProofData        []byte `json:"-"`
	ProofFilename    string `gorm:"type:varchar(255)" json:"proof_filename,omitempty"`
	ProofContentType string `gorm:"type:varchar(128)" json:"proof_content_type,omitempty"`
	ProofArchiveKey  string `gorm:"type:varchar(512)" json:"proof_archive_key,omitempty"`

	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	AdminConfirmedAt *time.Time `json:"admin_confirmed_at,omitempty"`
	AdminConfirmedBy string     `gorm:"type:varchar(255)" json:"admin_confirmed_by,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	RemovedAt        *time.Time `json:"removed_at,omitempty"`
}

// HasProof reports whether a transfer proof is attached.
func (b *Booking) HasProof() bool {
	return len(b.ProofData) > 0
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if !b.Status.Valid() {
		return fmt.Errorf("booking: invalid status %q", b.Status)
	}
	// created_at всегда в UTC.
	if b.CreatedAt.IsZero() {
		b.CreatedAt = tx.NowFunc()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return nil
}

// BeforeUpdate допускает пустой статус: Model(&Booking{}).Updates(map) приходит без него.
func (b *Booking) BeforeUpdate(tx *gorm.DB) error {
	if b.Status != "" && !b.Status.Valid() {
		return fmt.Errorf("booking: invalid status %q", b.Status)
	}
	return nil
}
