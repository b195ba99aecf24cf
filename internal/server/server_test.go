package server_test

import (
	"io"
	"mwdb/internal/server"
	"mwdb/pkg/logger"
	"mwdb/pkg/metrics"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Setup(logger.DevelopmentEnvironment, false)
	m.Run()
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()

	res, err := http.Get(srv.URL + path) //nolint: noctx
	require.NoError(t, err)
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res.StatusCode, string(b)
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.Delivered("file")

	s := server.New(server.Options{Addr: ":0", Gatherer: reg})
	require.Equal(t, ":0", s.Addr)
	require.Equal(t, server.DefaultReadHeaderTimeout, s.ReadHeaderTimeout)

	srv := httptest.NewServer(s.Handler)
	defer srv.Close()

	code, body := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `mwdb_listener_delivered_total{object_type="file"} 1`)

	code, body = get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok\n", body)

	code, _ = get(t, srv, "/debug/pprof/")
	require.Equal(t, http.StatusOK, code)
}

func TestNew_customMetricsPath(t *testing.T) {
	srv := httptest.NewServer(server.New(server.Options{MetricsPath: "/prom", Gatherer: prometheus.NewRegistry()}).Handler)
	defer srv.Close()

	code, _ := get(t, srv, "/prom")
	require.Equal(t, http.StatusOK, code)

	code, _ = get(t, srv, "/metrics")
	require.Equal(t, http.StatusNotFound, code)
}
