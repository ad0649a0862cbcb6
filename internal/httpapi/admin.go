package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Leganyst/consultation-booking/internal/auth"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login handles POST /api/admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	token, expires, err := h.admin.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrDisabled):
		h.logger.Warn("admin login rejected", "username", req.Username)
		writeErrorMessage(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

// ListBookings handles GET /api/admin/bookings?status=&date=&page=&page_size=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.bookings.List(r.Context(), service.ListQuery{
		Status:   q.Get("status"),
		Date:     q.Get("date"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "page_size"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type bookingDetail struct {
	Booking  *model.Booking `json:"booking"`
	HasProof bool           `json:"has_proof"`
	History  []model.Event  `json:"history"`
}

// GetBooking handles GET /api/admin/bookings/{id}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	history, err := h.bookings.History(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingDetail{
		Booking:  b,
		HasProof: b.HasProof() || b.ProofArchiveKey != "",
		History:  history,
	})
}

// ConfirmBooking handles PUT /api/admin/bookings/{id}/confirm
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.AdminConfirm(r.Context(), chi.URLParam(r, "id"), AdminFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CancelBooking handles PUT /api/admin/bookings/{id}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Cancel(r.Context(), chi.URLParam(r, "id"), AdminFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// DeleteBooking handles DELETE /api/admin/bookings/{id}
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Delete(r.Context(), chi.URLParam(r, "id"), AdminFromContext(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BookingProof handles GET /api/admin/bookings/{id}/proof
func (h *Handler) BookingProof(w http.ResponseWriter, r *http.Request) {
	proof, err := h.bookings.Proof(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ct := proof.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(proof.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", proof.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(proof.Data)
}

// ExportBookings handles GET /api/admin/bookings/export?status=
func (h *Handler) ExportBookings(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" {
		if _, err := calendar.ParseStatus(status); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.csv"`)
	if err := h.bookings.ExportCSV(r.Context(), w, status); err != nil {
		// Заголовки уже отправлены, остаётся только лог.
		h.logger.Error("csv export failed", "error", err)
	}
}

// Stats handles GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookings.Stats(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetSettings handles GET /api/admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.Pricing(w, r)
}

// UpdateSettings handles PUT /api/admin/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var cfg calendar.PricingConfig
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, h.logger, err)
		return
	}
	saved, err := h.settings.UpdatePricing(r.Context(), cfg, AdminFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse{PricingConfig: saved, Currency: h.settings.Currency()})
}

// GetSchedule handles GET /api/admin/schedule?page=&page_size=
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := h.schedule.View(r.Context(), queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type weeklyRequest struct {
	Weekly calendar.WeeklyTemplate `json:"weekly"`
}

// UpdateWeekly handles PUT /api/admin/schedule/weekly
func (h *Handler) UpdateWeekly(w http.ResponseWriter, r *http.Request) {
	var req weeklyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Weekly == nil {
		writeError(w, h.logger, fmt.Errorf("%w: weekly template is required", calendar.ErrInvalidInput))
		return
	}
	tpl, err := h.schedule.UpdateWeeklyTemplate(r.Context(), req.Weekly, AdminFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, weeklyRequest{Weekly: tpl})
}

// SetOverride handles PUT /api/admin/schedule/overrides
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var o calendar.DateOverride
	if err := decodeJSON(r, &o); err != nil {
		writeError(w, h.logger, err)
		return
	}
	saved, err := h.schedule.SetOverride(r.Context(), o, AdminFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// DeleteOverride handles DELETE /api/admin/schedule/overrides/{date}
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := h.schedule.RemoveOverride(r.Context(), chi.URLParam(r, "date"), AdminFromContext(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
