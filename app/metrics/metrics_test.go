package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		99:  "unknown",
		100: "1xx",
		200: "2xx",
		204: "2xx",
		301: "3xx",
		404: "4xx",
		500: "5xx",
		599: "5xx",
		600: "unknown",
	}
	for code, want := range tests {
		require.Equal(t, want, StatusClass(code), "code %d", code)
	}
}

func TestCounters(t *testing.T) {
	c := StaticLookups.WithLabelValues("test_hit")
	c.Inc()
	c.Inc()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.Equal(t, float64(2), m.GetCounter().GetValue())

	Routes.Set(3)
	m = &dto.Metric{}
	require.NoError(t, Routes.Write(m))
	require.Equal(t, float64(3), m.GetGauge().GetValue())
}

func TestHandler(t *testing.T) {
	RequestErrors.WithLabelValues("panic").Inc()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, w.Code)
	b, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), `vala_frontend_request_errors_total{kind="panic"}`)
}
