package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterConfig: всё, что нужно для сборки HTTP-роутера.
type RouterConfig struct {
	Handler            *Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	PublicRateLimit    float64
	PublicRateBurst    int
	// TrustProxyHeaders включает chi RealIP; без него лимитер видит адрес соединения.
	TrustProxyHeaders bool
}

// NewRouter wires the public and admin routes.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler

	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(h.logger))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	limit := RateLimit(cfg.PublicRateLimit, cfg.PublicRateBurst)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.Health)

		api.Group(func(public chi.Router) {
			public.Use(limit)

			public.Get("/pricing", h.Pricing)
			public.Get("/payment-config", h.PaymentConfig)
			public.Get("/available-slots/{date}", h.AvailableSlots)
			public.Post("/bookings/online", h.CreateOnline)
			public.Post("/bookings/online/confirm", h.ConfirmOnline)
			public.Post("/bookings/bank-transfer", h.CreateBankTransfer)
			public.Post("/bookings/{id}/proof", h.UploadProof)
		})

		api.Route("/admin", func(r chi.Router) {
			r.With(limit).Post("/login", h.Login)

			admin := r.With(AdminAuth(h.admin))
			admin.Get("/stats", h.Stats)
			admin.Get("/settings", h.GetSettings)
			admin.Put("/settings", h.UpdateSettings)

			admin.Route("/bookings", func(b chi.Router) {
				b.Get("/", h.ListBookings)
				b.Get("/export", h.ExportBookings)
				b.Get("/{id}", h.GetBooking)
				b.Put("/{id}/confirm", h.ConfirmBooking)
				b.Put("/{id}/cancel", h.CancelBooking)
				b.Delete("/{id}", h.DeleteBooking)
				b.Get("/{id}/proof", h.BookingProof)
			})

			admin.Route("/schedule", func(s chi.Router) {
				s.Get("/", h.GetSchedule)
				s.Put("/weekly", h.UpdateWeekly)
				s.Put("/overrides", h.SetOverride)
				s.Delete("/overrides/{date}", h.DeleteOverride)
			})
		})
	})

	if len(cfg.CORSAllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(r)
}
