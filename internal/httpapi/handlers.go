package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Leganyst/consultation-booking/internal/auth"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/service"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// Handler serves the public booking API and the admin API.
type Handler struct {
	bookings      *service.BookingService
	schedule      *service.ScheduleService
	settings      *service.SettingsService
	admin         *auth.Admin
	metrics       *metrics.BookingMetrics
	maxProofBytes int64
	logger        *logging.Logger
}

func NewHandler(
	bookings *service.BookingService,
	schedule *service.ScheduleService,
	settings *service.SettingsService,
	admin *auth.Admin,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		bookings:      bookings,
		schedule:      schedule,
		settings:      settings,
		admin:         admin,
		metrics:       m,
		maxProofBytes: service.DefaultMaxProofBytes,
		logger:        logger,
	}
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type slotsResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// AvailableSlots handles GET /api/available-slots/{date}
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	slots, err := h.schedule.AvailableSlots(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveAvailability("http", len(slots))
	writeJSON(w, http.StatusOK, slotsResponse{Date: date, Slots: slots})
}

type pricingResponse struct {
	calendar.PricingConfig
	Currency string `json:"currency"`
}

// Pricing handles GET /api/pricing
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Pricing(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pricingResponse{PricingConfig: cfg, Currency: h.settings.Currency()})
}

// PaymentConfig handles GET /api/payment-config
func (h *Handler) PaymentConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.PaymentConfig(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// CreateOnline handles POST /api/bookings/online
func (h *Handler) CreateOnline(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.bookings.CreateOnline(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CreateBankTransfer handles POST /api/bookings/bank-transfer
func (h *Handler) CreateBankTransfer(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.bookings.CreateBankTransfer(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type confirmOnlineRequest struct {
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	PayerID   string `json:"payer_id"`
}

// ConfirmOnline handles POST /api/bookings/online/confirm
func (h *Handler) ConfirmOnline(w http.ResponseWriter, r *http.Request) {
	var req confirmOnlineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	b, err := h.bookings.ConfirmOnline(r.Context(), req.BookingID, req.PaymentID, req.PayerID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// UploadProof handles POST /api/bookings/{id}/proof, multipart field "proof".
func (h *Handler) UploadProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxProofBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxProofBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, h.logger, err)
			return
		}
		writeError(w, h.logger, fmt.Errorf("%w: expected multipart form: %v", calendar.ErrInvalidInput, err))
		return
	}
	file, header, err := r.FormFile("proof")
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: proof file is required", calendar.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	b, err := h.bookings.UploadProof(r.Context(), chi.URLParam(r, "id"), service.ProofUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
