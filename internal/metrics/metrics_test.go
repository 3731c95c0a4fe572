package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetrics_NilIsNoop(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.OrderCreated(3)
		m.OrderRejected("insufficient_stock")
		m.Transition("PENDING", "PROCESSING")
		m.Restored(2)
	})
}

func TestOrderMetrics_Counts(t *testing.T) {
	m := NewOrderMetrics(prometheus.NewRegistry())

	m.OrderCreated(3)
	m.OrderCreated(2)
	m.OrderRejected("insufficient_stock")
	m.Transition("PENDING", "CANCELLED")
	m.Restored(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.created))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.reserved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("PENDING", "CANCELLED")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.restored))
}

func TestServerMetrics_Middleware(t *testing.T) {
	m := NewServerMetrics(prometheus.NewRegistry(), "api")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/{id}", "418")))
}

func TestNewServerMetrics_SanitizesServiceName(t *testing.T) {
	reg := prometheus.NewRegistry()

	assert.NotPanics(t, func() { NewServerMetrics(reg, "order-api") })
	assert.Equal(t, "order_api", subsystem("order-api"))
}
