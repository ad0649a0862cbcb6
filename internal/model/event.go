package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingCreated   EventType = "booking_created"
	EventTypeBookingConfirmed EventType = "booking_confirmed"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypeBookingDeleted   EventType = "booking_deleted"
	EventTypeSettingsUpdated  EventType = "settings_updated"
	EventTypeScheduleUpdated  EventType = "schedule_updated"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	EventType EventType `gorm:"type:varchar(64);not null;index" json:"event_type"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	BookingID *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	// Кто инициировал: "client", "system" или имя администратора.
	Actor string `gorm:"type:varchar(255)" json:"actor"`

	Details string `gorm:"type:text" json:"details,omitempty"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
