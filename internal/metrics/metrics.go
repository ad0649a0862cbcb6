package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking lifecycle and its collaborators.
type BookingMetrics struct {
	bookingsCreated *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	railCalls       *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	availability    *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultation",
			Subsystem: "booking",
			Name:      "created_total",
			Help:      "Bookings created, by payment rail",
		}, []string{"rail"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultation",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Lifecycle actions applied to bookings",
		}, []string{"action", "result"}),
		railCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultation",
			Subsystem: "payment",
			Name:      "rail_calls_total",
			Help:      "Calls to the online payment rail",
		}, []string{"operation", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultation",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Confirmation emails by recipient and outcome",
		}, []string{"recipient", "status"}),
		availability: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultation",
			Subsystem: "schedule",
			Name:      "available_slots",
			Help:      "Number of open slots returned per availability query",
			Buckets:   []float64{0, 1, 2, 4, 8, 16},
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsCreated, m.transitions, m.railCalls, m.notifications, m.availability)
	return m
}

func (m *BookingMetrics) ObserveCreated(rail string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(rail).Inc()
}

func (m *BookingMetrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, resultLabel(err)).Inc()
}

func (m *BookingMetrics) ObserveRailCall(operation string, err error) {
	if m == nil {
		return
	}
	m.railCalls.WithLabelValues(operation, resultLabel(err)).Inc()
}

func (m *BookingMetrics) ObserveNotification(recipient string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(recipient, resultLabel(err)).Inc()
}

// ObserveAvailability records how many slots a query returned; source is the caller ("http", "grpc").
func (m *BookingMetrics) ObserveAvailability(source string, open int) {
	if m == nil {
		return
	}
	m.availability.WithLabelValues(source).Observe(float64(open))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
