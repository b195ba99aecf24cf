package controller_test

import (
	"mwdb/pkg/controller"
	"mwdb/pkg/logger"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGetClientIP(t *testing.T) {
	tests := map[string]struct {
		header, value, remote string
		want                  string
	}{
		"x-forwarded-for": {header: "X-Forwarded-For", value: "1.2.3.4, 5.6.7.8", want: "1.2.3.4"},
		"x-real-ip":       {header: "X-Real-IP", value: "9.8.7.6", want: "9.8.7.6"},
		"remote addr":     {remote: "10.0.0.1:12345", want: "10.0.0.1"},
		"invalid remote":  {remote: "not-an-addr", want: "not-an-addr"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if tt.remote != "" {
				req.RemoteAddr = tt.remote
			}
			require.Equal(t, tt.want, controller.GetClientIP(req))
		})
	}
}

func TestWithLogger_echoesRequestID(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment, true)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = controller.RequestID(r.Context())
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set(controller.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	controller.WithLogger(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get(controller.RequestIDHeader))
}

func TestWithLogger_generatesRequestID(t *testing.T) {
	logger.Setup(logger.DevelopmentEnvironment, true)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = controller.RequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	controller.WithLogger(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, rec.Header().Get(controller.RequestIDHeader))
}

func TestRequestID_missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	require.Empty(t, controller.RequestID(req.Context()))
}
