package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCreated("online")
	m.ObserveCreated("online")
	m.ObserveTransition("cancel", nil)
	m.ObserveTransition("cancel", errors.New("boom"))
	m.ObserveRailCall("execute", nil)
	m.ObserveNotification("client", errors.New("smtp down"))
	m.ObserveAvailability("http", 3)

	if got := counterValue(t, m.bookingsCreated.WithLabelValues("online")); got != 2 {
		t.Fatalf("created_total = %v, want 2", got)
	}
	if got := counterValue(t, m.transitions.WithLabelValues("cancel", "error")); got != 1 {
		t.Fatalf("transitions error = %v, want 1", got)
	}
	if got := counterValue(t, m.notifications.WithLabelValues("client", "error")); got != 1 {
		t.Fatalf("notifications error = %v, want 1", got)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveCreated("online")
	m.ObserveTransition("cancel", nil)
	m.ObserveRailCall("create", nil)
	m.ObserveNotification("provider", nil)
	m.ObserveAvailability("grpc", 0)
}
