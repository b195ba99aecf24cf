package controller_test

import (
	"mwdb/pkg/controller"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://local"+path, nil))

	return rec
}

func TestRegisterPprof(t *testing.T) {
	mux := http.NewServeMux()
	controller.RegisterPprof(mux)

	rec := serve(t, mux, "/debug/pprof/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Content-Type"))

	require.Equal(t, http.StatusOK, serve(t, mux, "/debug/pprof/cmdline").Code)
	require.Equal(t, http.StatusOK, serve(t, mux, "/debug/pprof/goroutine?debug=1").Code)
}

func TestHealthz(t *testing.T) {
	rec := serve(t, http.HandlerFunc(controller.Healthz), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok\n", rec.Body.String())
}
