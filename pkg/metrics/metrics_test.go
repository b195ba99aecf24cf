package metrics_test

import (
	"mwdb/pkg/metrics"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics

	require.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, http.StatusOK, time.Second)
		m.Retry("downtime")
		m.Poll("file")
		m.Delivered("file")
	})
}

func TestRegisterAndCollect(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.ObserveRequest(http.MethodGet, http.StatusOK, 120*time.Millisecond)
	m.ObserveRequest(http.MethodGet, http.StatusOK, 80*time.Millisecond)
	m.ObserveRequest(http.MethodPost, http.StatusTooManyRequests, 10*time.Millisecond)
	m.Retry("ratelimit")
	m.Poll("config")
	m.Delivered("config")
	m.Delivered("config")

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Positive(t, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["mwdb_api_requests_total"])
	require.True(t, names["mwdb_api_request_duration_seconds"])
	require.True(t, names["mwdb_listener_delivered_total"])
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestUnregistered(t *testing.T) {
	m, err := metrics.New(nil)
	require.NoError(t, err)
	require.NotPanics(t, func() { m.Delivered("blob") })
}
