package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// Актёры для журнала аудита.
const (
	ActorClient = "client"
	ActorSystem = "system"
)

// auditor пишет события аудита; ошибки записи только логируются.
type auditor struct {
	events repository.EventRepository
	logger *logging.Logger
}

func (a auditor) record(ctx context.Context, typ model.EventType, bookingID *uuid.UUID, actor string, details map[string]any) {
	if a.events == nil {
		return
	}
	var payload string
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	ev := &model.Event{EventType: typ, BookingID: bookingID, Actor: actor, Details: payload}
	if err := a.events.Create(ctx, ev); err != nil {
		a.logger.Warn("audit event not recorded", "error", err, "event_type", string(typ))
	}
}
