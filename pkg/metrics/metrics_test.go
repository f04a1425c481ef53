package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveMutation("create", "applied")
	m.ObserveMutation("create", "applied")
	m.ObserveBooking("book", "ok")
	m.ObserveNotification("booked", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("create", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("book", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("booked", "failed")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "availability_mutations_total")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveMutation("delete", "skipped")
		m.ObserveBooking("cancel", "rejected")
		m.ObserveNotification("cancelled", "sent")
	})
}
